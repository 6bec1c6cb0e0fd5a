package installer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/process"
)

var ErrInstallFailed = errors.New("install command failed")

// Environment of the installer: no self-upgrade nag from pip in the
// streamed output, no interactive prompts.
var installEnvs = []string{
	"PIP_DISABLE_PIP_VERSION_CHECK=1",
	"PIP_NO_INPUT=1",
}

// Run executes the plan through bash, streaming the installer output to out.
// A non-zero exit of the installer is returned as ErrInstallFailed.
func Run(ctx context.Context, plan *Plan, out *os.File) error {
	script := "#!/bin/bash\n\nset -o errexit\nset -o pipefail\n\n" + plan.String() + "\n"

	p, err := process.New(
		process.WithBashScriptContentsToRun(script),
		process.WithOutputFile(out),
		process.WithEnvs(installEnvs...),
	)
	if err != nil {
		return err
	}

	log.Logger.Infow("running install command", "command", plan.String())
	if err := p.Start(ctx); err != nil {
		return err
	}
	log.Logger.Debugw("install command started", "pid", p.PID())
	defer func() {
		if err := p.Close(ctx); err != nil {
			log.Logger.Warnw("failed to close install process", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-p.Wait():
		if err != nil {
			return fmt.Errorf("%w (exit code %d): %v", ErrInstallFailed, p.ExitCode(), err)
		}
	}
	return nil
}
