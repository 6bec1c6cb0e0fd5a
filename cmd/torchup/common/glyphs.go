// Package common implements common functions for the torchup command.
package common

const (
	CheckMark   = "\033[32m✔\033[0m"
	WarningSign = "\033[31m✘\033[0m"
)
