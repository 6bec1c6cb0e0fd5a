// Package pyenv resolves the Python environment that receives the packages.
package pyenv

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Kind is how the target environment was chosen.
type Kind string

const (
	// KindVenv is a virtual environment requested with "--venv".
	KindVenv Kind = "venv"
	// KindActiveVenv is a virtual environment already activated in the shell ($VIRTUAL_ENV).
	KindActiveVenv Kind = "active-venv"
	// KindConda is an activated conda environment ($CONDA_PREFIX).
	KindConda Kind = "conda"
	// KindSystem is the system-wide interpreter, requested with "--system".
	KindSystem Kind = "system"
)

const (
	EnvVirtualEnv  = "VIRTUAL_ENV"
	EnvCondaPrefix = "CONDA_PREFIX"
)

var ErrNoEnvironment = errors.New(`no Python environment to install into
  use --venv [PATH] to create (or reuse) a virtual environment,
  use --system to install into the system interpreter,
  or activate a virtualenv/conda environment first`)

// Target is the environment the installer writes into.
type Target struct {
	Kind Kind `json:"kind"`

	// Root of the environment, empty for the system interpreter.
	Path string `json:"path,omitempty"`

	// Interpreter used for "-m pip", "uv pip --python" and the verification probe.
	Python string `json:"python"`

	// Installer inside the environment, only set for KindVenv.
	Pip string `json:"pip,omitempty"`

	// Set when the system interpreter refuses unmanaged installs (PEP 668).
	BreakSystemPackages bool `json:"break_system_packages,omitempty"`
}

// Isolated returns true for any environment other than the system interpreter.
func (t *Target) Isolated() bool {
	return t != nil && t.Kind != KindSystem
}

func (t *Target) String() string {
	if t == nil {
		return "<none>"
	}
	if t.Path == "" {
		return fmt.Sprintf("%s (%s)", t.Kind, t.Python)
	}
	return fmt.Sprintf("%s (%s)", t.Kind, t.Path)
}

// NewVenvTarget returns the target for a virtual environment rooted at dir.
func NewVenvTarget(kind Kind, dir string) *Target {
	dir = filepath.Clean(dir)
	t := &Target{
		Kind:   kind,
		Path:   dir,
		Python: filepath.Join(dir, "bin", "python"),
	}
	if kind == KindVenv {
		t.Pip = filepath.Join(dir, "bin", "pip")
	}
	return t
}
