// Package installer synthesizes and runs the package installer command.
package installer

import (
	"errors"
	"fmt"

	"github.com/alessio/shellescape"

	"github.com/leptonai/torchup/pkg/channel"
	"github.com/leptonai/torchup/pkg/config"
	"github.com/leptonai/torchup/pkg/pyenv"
)

const uvInstallHint = "curl -LsSf https://astral.sh/uv/install.sh | sh"

var ErrUVNotFound = fmt.Errorf("uv was requested with --uv but is not installed (install it with %q)", uvInstallHint)

// Plan is the synthesized install command.
type Plan struct {
	// Program is the installer executable, e.g., "myenv/bin/pip" or "uv".
	Program string `json:"program"`
	// Args are the arguments after Program, including packages and the index flag.
	Args []string `json:"args"`

	Packages []string          `json:"packages"`
	IndexURL string            `json:"index_url"`
	Channel  channel.Selection `json:"channel"`
	Target   *pyenv.Target     `json:"target"`
}

// Argv returns the program followed by its arguments.
func (p *Plan) Argv() []string {
	return append([]string{p.Program}, p.Args...)
}

// String returns the command quoted for a POSIX shell.
func (p *Plan) String() string {
	return shellescape.QuoteCommand(p.Argv())
}

// Build synthesizes the install command.
// uvPath is the located "uv" executable, empty if uv is not installed.
func Build(cfg *config.Config, sel channel.Selection, target *pyenv.Target, uvPath string) (*Plan, error) {
	packages := make([]string, 0, 3)
	for _, p := range cfg.SelectedPackages() {
		packages = append(packages, p.Specifier())
	}
	if len(packages) == 0 {
		return nil, config.ErrNoPackages
	}
	if target == nil {
		return nil, pyenv.ErrNoEnvironment
	}
	if cfg.UseUV && uvPath == "" {
		return nil, ErrUVNotFound
	}

	program, args, err := installerInvocation(cfg.UseUV, uvPath, target)
	if err != nil {
		return nil, err
	}

	indexURL := channel.IndexURL(sel.Tag)
	args = append(args, packages...)
	args = append(args, "--index-url", indexURL)

	return &Plan{
		Program:  program,
		Args:     args,
		Packages: packages,
		IndexURL: indexURL,
		Channel:  sel,
		Target:   target,
	}, nil
}

// installerInvocation returns the installer program and its base flags for the target.
// "--break-system-packages" (PEP 668) is only ever added here.
func installerInvocation(useUV bool, uvPath string, target *pyenv.Target) (string, []string, error) {
	switch {
	case useUV && target.Kind == pyenv.KindVenv:
		return uvPath, []string{"pip", "install", "--python", target.Python}, nil

	case useUV && target.Kind == pyenv.KindSystem:
		args := []string{"pip", "install", "--system"}
		if target.BreakSystemPackages {
			args = append(args, "--break-system-packages")
		}
		return uvPath, args, nil

	case useUV:
		// uv discovers the active environment from $VIRTUAL_ENV / $CONDA_PREFIX
		return uvPath, []string{"pip", "install"}, nil

	case target.Kind == pyenv.KindVenv:
		return target.Pip, []string{"install"}, nil

	case target.Kind == pyenv.KindSystem:
		args := []string{"-m", "pip", "install"}
		if target.BreakSystemPackages {
			args = append(args, "--break-system-packages")
		}
		return target.Python, args, nil

	case target.Kind == pyenv.KindActiveVenv, target.Kind == pyenv.KindConda:
		return "pip", []string{"install"}, nil
	}
	return "", nil, errors.New("unknown environment kind " + string(target.Kind))
}
