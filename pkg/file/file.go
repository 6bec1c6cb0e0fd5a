// Package file provides file and executable lookup helpers.
package file

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

var ErrExecutableNotFound = errors.New("executable not found")

// Directories searched after $PATH, since tools such as "ldconfig"
// live in sbin directories that are often missing from a non-root $PATH.
var fallbackDirs = []string{
	"/usr/local/sbin",
	"/usr/sbin",
	"/sbin",
	"/usr/local/cuda/bin",
}

// LocateExecutable returns the absolute path of the named executable,
// or ErrExecutableNotFound if it is neither in $PATH nor in the fallback directories.
func LocateExecutable(bin string) (string, error) {
	execPath, err := exec.LookPath(bin)
	if err == nil {
		return filepath.Abs(execPath)
	}

	for _, dir := range fallbackDirs {
		p := filepath.Join(dir, bin)
		if err := CheckExecutable(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrExecutableNotFound, bin)
}

// CheckExecutable returns nil if the file exists and is executable.
func CheckExecutable(file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", file)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("%q is not executable", file)
	}
	return nil
}

// Exists returns true if the file or directory exists.
func Exists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
