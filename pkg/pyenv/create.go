package pyenv

import (
	"context"
	"fmt"

	"github.com/leptonai/torchup/pkg/file"
	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/process"
)

// Creator creates virtual environments.
type Creator interface {
	// Create creates the environment at dir.
	// Returns false and no error if dir already exists.
	Create(ctx context.Context, dir string) (bool, error)
}

// CommandFunc runs a command to completion.
type CommandFunc func(ctx context.Context, args ...string) error

type venvCreator struct {
	args []string
	run  CommandFunc
}

// NewCreator returns a creator that runs "uv venv <dir>" when uvPath is set,
// and "<python> -m venv <dir>" otherwise.
func NewCreator(uvPath string, python string, run CommandFunc) Creator {
	args := []string{python, "-m", "venv"}
	if uvPath != "" {
		args = []string{uvPath, "venv"}
	}
	if run == nil {
		run = runStreaming
	}
	return &venvCreator{args: args, run: run}
}

func (c *venvCreator) Create(ctx context.Context, dir string) (bool, error) {
	exists, err := file.Exists(dir)
	if err != nil {
		return false, err
	}
	if exists {
		log.Logger.Warnw("virtual environment path already exists, skipping creation", "path", dir)
		return false, nil
	}

	args := append(append([]string{}, c.args...), dir)
	log.Logger.Infow("creating virtual environment", "path", dir, "command", args)
	if err := c.run(ctx, args...); err != nil {
		return false, fmt.Errorf("failed to create virtual environment %q: %w", dir, err)
	}
	return true, nil
}

// runStreaming runs the command and forwards its output to the logger.
func runStreaming(ctx context.Context, args ...string) error {
	p, err := process.New(process.WithCommand(args...))
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Close(ctx); err != nil {
			log.Logger.Warnw("failed to close process", "error", err)
		}
	}()

	return process.Read(
		ctx,
		p,
		process.WithReadStdout(),
		process.WithReadStderr(),
		process.WithProcessLine(func(line string) {
			log.Logger.Infow(line, "command", args[0])
		}),
		process.WithWaitForCmd(),
	)
}
