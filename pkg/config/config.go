// Package config provides the torchup configuration built from the command line.
package config

import (
	"errors"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Package is one installable PyTorch package.
type Package struct {
	Name string `json:"name"`

	// Set false to leave the package out of the install command.
	Install bool `json:"install"`

	// Pinned version, e.g., "2.4.0".
	// Empty means the installer picks the latest version in the index.
	Version string `json:"version,omitempty"`
}

// Specifier returns the requirement specifier for the installer,
// e.g., "torch" or "torch==2.4.0".
func (p Package) Specifier() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "==" + p.Version
}

// Config is built once from the command-line arguments
// and is not modified afterwards.
type Config struct {
	Torch       Package `json:"torch"`
	TorchVision Package `json:"torchvision"`
	TorchAudio  Package `json:"torchaudio"`

	// Set true to install with "uv pip" instead of "pip".
	UseUV bool `json:"use_uv"`

	// Set true to allow installing into the system interpreter.
	System bool `json:"system"`

	// Set true to create (if absent) and target a virtual environment at VenvPath.
	CreateVenv bool   `json:"create_venv"`
	VenvPath   string `json:"venv_path,omitempty"`

	// Forces the CUDA version instead of detecting it, e.g., "12.1".
	CUDAOverride string `json:"cuda_override,omitempty"`

	// Forces the CPU channel regardless of any detected or overridden CUDA version.
	CPUOnly bool `json:"cpu_only"`

	// Set true to print the command without running it.
	DryRun bool `json:"dry_run"`

	LogLevel     string `json:"log_level,omitempty"`
	LogFile      string `json:"log_file,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`

	// Timeout for each CUDA detection probe.
	ProbeTimeout metav1.Duration `json:"probe_timeout"`
}

var (
	ErrNoPackages     = errors.New("no packages selected for installation (at least one of torch, torchvision, torchaudio is required)")
	ErrEmptyVenvPath  = errors.New("virtual environment path is empty")
	ErrInvalidTimeout = errors.New("probe timeout must be positive")
)

// Packages returns all packages in install order, selected or not.
func (config *Config) Packages() []Package {
	return []Package{config.Torch, config.TorchVision, config.TorchAudio}
}

// SelectedPackages returns the packages whose install flag is set, in install order.
func (config *Config) SelectedPackages() []Package {
	selected := make([]Package, 0, 3)
	for _, p := range config.Packages() {
		if p.Install {
			selected = append(selected, p)
		}
	}
	return selected
}

func (config *Config) Validate() error {
	if len(config.SelectedPackages()) == 0 {
		return ErrNoPackages
	}
	if config.CreateVenv && config.VenvPath == "" {
		return ErrEmptyVenvPath
	}
	if config.ProbeTimeout.Duration <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidTimeout, config.ProbeTimeout.Duration)
	}
	if config.ProbeTimeout.Duration > 10*time.Minute {
		return fmt.Errorf("probe timeout must be at most 10 minutes, got %s", config.ProbeTimeout.Duration)
	}
	return nil
}
