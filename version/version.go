// Package version provides the version information for torchup.
package version

// Version holds the complete version number. Filled in at linking time.
var Version = "0.0.1+unknown"
