package pyenv

import (
	"context"
	"os"

	"github.com/leptonai/torchup/pkg/config"
	"github.com/leptonai/torchup/pkg/file"
	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/osutil"
)

// DefaultSystemPython is the interpreter name used in system mode.
const DefaultSystemPython = "python3"

type Op struct {
	getenv       func(string) string
	creator      Creator
	systemPython string
	uvPath       string
	pythonRunner PythonRunner
	isRoot       func() bool
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.getenv == nil {
		op.getenv = os.Getenv
	}
	if op.systemPython == "" {
		op.systemPython = DefaultSystemPython
		if p, err := file.LocateExecutable(DefaultSystemPython); err == nil {
			op.systemPython = p
		}
	}
	if op.creator == nil {
		op.creator = NewCreator(op.uvPath, op.systemPython, nil)
	}
	if op.pythonRunner == nil {
		op.pythonRunner = RunPython
	}
	if op.isRoot == nil {
		op.isRoot = osutil.IsRoot
	}
}

// WithGetenv sets the environment lookup, defaults to os.Getenv.
func WithGetenv(fn func(string) string) OpOption {
	return func(op *Op) {
		op.getenv = fn
	}
}

// WithCreator sets how "--venv" environments are created.
func WithCreator(c Creator) OpOption {
	return func(op *Op) {
		op.creator = c
	}
}

// WithUV sets the located "uv" executable, used to create "--venv" environments.
func WithUV(uvPath string) OpOption {
	return func(op *Op) {
		op.uvPath = uvPath
	}
}

// WithSystemPython sets the system interpreter path.
func WithSystemPython(python string) OpOption {
	return func(op *Op) {
		op.systemPython = python
	}
}

// WithPythonRunner sets how the system interpreter is queried.
func WithPythonRunner(run PythonRunner) OpOption {
	return func(op *Op) {
		op.pythonRunner = run
	}
}

// WithIsRoot overrides the privilege check used for the system-mode warning.
func WithIsRoot(fn func() bool) OpOption {
	return func(op *Op) {
		op.isRoot = fn
	}
}

// Resolve picks the target environment, in order of precedence:
// an environment requested with "--venv" (created if absent, except in dry-run),
// an already activated virtualenv or conda environment,
// then the system interpreter if "--system" was given.
// Returns ErrNoEnvironment if none applies.
func Resolve(ctx context.Context, cfg *config.Config, opts ...OpOption) (*Target, error) {
	op := &Op{}
	op.applyOpts(opts)

	if cfg.CreateVenv {
		if cfg.DryRun {
			log.Logger.Infow("dry-run, not creating virtual environment", "path", cfg.VenvPath)
		} else if _, err := op.creator.Create(ctx, cfg.VenvPath); err != nil {
			return nil, err
		}
		return NewVenvTarget(KindVenv, cfg.VenvPath), nil
	}

	if dir := op.getenv(EnvVirtualEnv); dir != "" {
		log.Logger.Infow("using active virtual environment", "path", dir)
		return NewVenvTarget(KindActiveVenv, dir), nil
	}
	if dir := op.getenv(EnvCondaPrefix); dir != "" {
		log.Logger.Infow("using active conda environment", "path", dir)
		return NewVenvTarget(KindConda, dir), nil
	}

	if cfg.System {
		return resolveSystem(ctx, op), nil
	}

	return nil, ErrNoEnvironment
}

func resolveSystem(ctx context.Context, op *Op) *Target {
	if !op.isRoot() {
		log.Logger.Warnw("installing into the system interpreter as a non-root user may fail with permission errors")
	}

	t := &Target{
		Kind:   KindSystem,
		Python: op.systemPython,
	}

	info, err := QueryPython(ctx, op.systemPython, op.pythonRunner)
	if err != nil {
		log.Logger.Warnw("failed to query the system interpreter", "python", op.systemPython, "error", err)
	}
	t.BreakSystemPackages = info.ExternallyManaged()
	if t.BreakSystemPackages {
		log.Logger.Warnw("system interpreter is externally managed, installing with --break-system-packages", "python", op.systemPython, "version", info.Version)
	}
	return t
}
