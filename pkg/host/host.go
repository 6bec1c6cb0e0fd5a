// Package host provides the host facts shown in the torchup report.
package host

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/leptonai/torchup/pkg/log"
)

// Info is a snapshot of the host platform.
type Info struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
}

// Load reads the host facts. Lookup failures are logged and leave the field empty.
func Load(ctx context.Context) Info {
	info := Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	var err error
	info.KernelVersion, err = host.KernelVersionWithContext(ctx)
	if err != nil {
		log.Logger.Debugw("failed to get kernel version", "error", err)
	}

	info.Platform, _, info.PlatformVersion, err = host.PlatformInformationWithContext(ctx)
	if err != nil {
		log.Logger.Debugw("failed to get platform information", "error", err)
	}

	if arch, err := host.KernelArch(); err == nil && arch != "" {
		info.Arch = arch
	}

	return info
}

// String returns a one-line platform description, e.g., "ubuntu 22.04 (x86_64)".
func (i Info) String() string {
	name := i.Platform
	if name == "" {
		name = i.OS
	}
	if i.PlatformVersion != "" {
		name += " " + i.PlatformVersion
	}
	return name + " (" + i.Arch + ")"
}
