// Package validation checks that the host can hold the packages before installing.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/leptonai/torchup/pkg/channel"
)

// ErrInsufficientDisk indicates that the target file system is too small for the wheels.
var ErrInsufficientDisk = errors.New("insufficient disk space")

const (
	// MinimumFreeBytesCPU is the space needed by the CPU-only wheels and the pip cache.
	MinimumFreeBytesCPU = 2 * 1024 * 1024 * 1024 // 2 GiB
	// MinimumFreeBytesCUDA also covers the bundled CUDA runtime libraries.
	MinimumFreeBytesCUDA = 8 * 1024 * 1024 * 1024 // 8 GiB
)

// DiskRequirements contains the observed free space and the minimum
// threshold for installing from a channel.
type DiskRequirements struct {
	// Path is the existing directory the usage was read from.
	Path string `json:"path"`

	FreeBytes        uint64 `json:"free_bytes"`
	MinimumFreeBytes uint64 `json:"minimum_free_bytes"`
}

// MinimumFreeBytes returns the free space needed to install from the channel.
func MinimumFreeBytes(tag channel.Tag) uint64 {
	if tag.IsCPU() {
		return MinimumFreeBytesCPU
	}
	return MinimumFreeBytesCUDA
}

// GetDiskRequirements reads the free space of the file system holding path.
// path may not exist yet (e.g., a virtual environment to be created),
// in which case its closest existing parent is used.
func GetDiskRequirements(ctx context.Context, path string, tag channel.Tag) (DiskRequirements, error) {
	dir, err := existingParent(path)
	if err != nil {
		return DiskRequirements{}, err
	}

	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return DiskRequirements{}, fmt.Errorf("failed to fetch disk usage of %q: %w", dir, err)
	}

	return DiskRequirements{
		Path:             dir,
		FreeBytes:        usage.Free,
		MinimumFreeBytes: MinimumFreeBytes(tag),
	}, nil
}

func existingParent(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing parent directory for %q", path)
		}
		abs = parent
	}
}

// Check returns ErrInsufficientDisk if the free space is below the minimum.
func (d DiskRequirements) Check() error {
	if d.FreeBytes < d.MinimumFreeBytes {
		return fmt.Errorf("%w at %s: %s free (minimum %s)",
			ErrInsufficientDisk, d.Path,
			d.FormatFreeHumanized(), humanize.IBytes(d.MinimumFreeBytes))
	}
	return nil
}

// FormatFreeHumanized returns the free space formatted as a human-readable string.
func (d DiskRequirements) FormatFreeHumanized() string {
	return humanize.IBytes(d.FreeBytes)
}
