package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	PackageTorch       = "torch"
	PackageTorchVision = "torchvision"
	PackageTorchAudio  = "torchaudio"

	// DefaultVenvPath is used when "--venv" is given without a path.
	DefaultVenvPath = ".venv"

	DefaultProbeTimeout = 15 * time.Second
)

// Default returns a config that installs all three packages unpinned.
func Default() *Config {
	return &Config{
		Torch:        Package{Name: PackageTorch, Install: true},
		TorchVision:  Package{Name: PackageTorchVision, Install: true},
		TorchAudio:   Package{Name: PackageTorchAudio, Install: true},
		ProbeTimeout: metav1.Duration{Duration: DefaultProbeTimeout},
	}
}
