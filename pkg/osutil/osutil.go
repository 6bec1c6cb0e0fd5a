// Package osutil provides utilities for the operating system.
package osutil

import "os"

// IsRoot returns true if the effective user is root.
func IsRoot() bool {
	return os.Geteuid() == 0
}
