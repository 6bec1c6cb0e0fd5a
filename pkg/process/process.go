// Package process provides the process runner implementation on the host.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/leptonai/torchup/pkg/log"
)

type Process interface {
	// Starts the process but does not wait for it to exit.
	Start(ctx context.Context) error
	// Returns true if the process is started.
	Started() bool

	// StartAndWaitForCombinedOutput starts the process and returns the combined output of the command.
	// Returns ErrProcessAlreadyStarted if the process is already started.
	StartAndWaitForCombinedOutput(ctx context.Context) ([]byte, error)

	// Closes the process (aborts if still running) and waits for it to exit.
	// Cleans up the process resources.
	Close(ctx context.Context) error
	// Returns true if the process is closed.
	Closed() bool

	// Waits for the process to exit and returns the error, if any.
	// If the command completes successfully, the error will be nil.
	Wait() <-chan error

	// Returns the current pid of the process.
	PID() int32

	// Returns the exit code of the process.
	// Returns 0 if the process is not started yet.
	ExitCode() int32

	// Returns the stdout reader.
	// Returns the output file instead, if one was configured.
	StdoutReader() io.Reader

	// Returns the stderr reader.
	// Returns the output file instead, if one was configured.
	StderrReader() io.Reader
}

var ErrProcessAlreadyStarted = errors.New("process already started")

type process struct {
	ctx    context.Context
	cancel context.CancelFunc

	cmdMu sync.RWMutex
	cmd   *exec.Cmd

	startedMu sync.RWMutex
	started   bool

	closedMu sync.RWMutex
	closed   bool

	// error streaming channel, closed on command exit
	errc chan error

	pid      int32
	exitCode int32
	exited   atomic.Bool

	commandArgs []string
	envs        []string
	runBashFile *os.File

	// owned by the caller, never closed here
	outputFile *os.File

	stdoutReadCloser io.ReadCloser
	stderrReadCloser io.ReadCloser
}

func New(opts ...OpOption) (Process, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	var cmdArgs []string
	var bashFile *os.File
	if op.bashScriptContentsToRun != "" {
		var err error
		bashFile, err = os.CreateTemp(os.TempDir(), "torchup-*.bash")
		if err != nil {
			return nil, err
		}

		// the script is complete, commands are appended after it
		if _, err := bashFile.Write([]byte(op.bashScriptContentsToRun)); err != nil {
			return nil, err
		}
		defer func() {
			_ = bashFile.Sync()
		}()
		cmdArgs = []string{"bash", bashFile.Name()}
	}

	for _, args := range op.commandsToRun {
		if bashFile == nil { // non-bash mode: single command
			cmdArgs = args
			continue
		}

		if _, err := bashFile.Write([]byte(strings.Join(args, " "))); err != nil {
			return nil, err
		}
		if _, err := bashFile.Write([]byte("\n")); err != nil {
			return nil, err
		}
	}

	var envs []string
	if len(op.envs) > 0 {
		envs = append(os.Environ(), op.envs...)
	}

	return &process{
		errc: make(chan error, 1),

		commandArgs: cmdArgs,
		envs:        envs,
		runBashFile: bashFile,
		outputFile:  op.outputFile,
	}, nil
}

func (p *process) Start(ctx context.Context) error {
	if p.Started() || p.Closed() {
		return nil
	}

	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()

	if p.cmd != nil {
		return ErrProcessAlreadyStarted
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	log.Logger.Debugw("starting command", "command", p.commandArgs)
	p.cmd = p.createCmd()

	switch {
	case p.outputFile != nil:
		p.cmd.Stdout = p.outputFile
		p.cmd.Stderr = p.outputFile

	default:
		var err error
		p.stdoutReadCloser, err = p.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to get stdout pipe: %w", err)
		}
		p.stderrReadCloser, err = p.cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("failed to get stderr pipe: %w", err)
		}
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}
	atomic.StoreInt32(&p.pid, int32(p.cmd.Process.Pid))
	p.setStarted()

	go p.watchCmd()

	return nil
}

func (p *process) Started() bool {
	p.startedMu.RLock()
	defer p.startedMu.RUnlock()

	return p.started
}

func (p *process) setStarted() {
	p.startedMu.Lock()
	p.started = true
	p.startedMu.Unlock()
}

// createCmd places the command in its own process group so that
// cancelling the context also kills anything it spawned (pip build
// backends, bash children).
func (p *process) createCmd() *exec.Cmd {
	cmd := exec.CommandContext(p.ctx, p.commandArgs[0], p.commandArgs[1:]...)
	cmd.Env = p.envs
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// ESRCH ("no such process") is expected if the group already exited.
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
			return err
		}
		return nil
	}
	return cmd
}

func (p *process) StartAndWaitForCombinedOutput(ctx context.Context) ([]byte, error) {
	if p.Started() {
		return nil, ErrProcessAlreadyStarted
	}

	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()

	p.ctx, p.cancel = context.WithCancel(ctx)
	defer p.cancel()

	p.cmd = p.createCmd()

	// ref. "os/exec" "CombinedOutput"
	b := bytes.NewBuffer(nil)
	p.cmd.Stdout = b
	p.cmd.Stderr = b
	if err := p.cmd.Start(); err != nil {
		return b.Bytes(), fmt.Errorf("failed to start command: %w", err)
	}
	atomic.StoreInt32(&p.pid, int32(p.cmd.Process.Pid))
	p.setStarted()

	err := p.cmd.Wait()
	p.recordExit(err)
	if err != nil {
		// may fail from the command error (e.g., exit 255)
		// we still return the partial output
		return b.Bytes(), fmt.Errorf("command exited with error: %w", err)
	}
	return b.Bytes(), nil
}

// Returns a channel where the command watcher sends the error if any.
// The channel is closed on the command exit.
func (p *process) Wait() <-chan error {
	return p.errc
}

func (p *process) watchCmd() {
	defer close(p.errc)

	err := p.cmd.Wait()
	p.recordExit(err)
	p.errc <- err
}

func (p *process) recordExit(err error) {
	p.exited.Store(true)

	if err == nil {
		log.Logger.Debugw("process exited successfully", "command", p.commandArgs)
		return
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		log.Logger.Warnw("error waiting for command to finish", "error", err, "command", p.commandArgs)
		return
	}

	exitCode := exitErr.ExitCode()
	atomic.StoreInt32(&p.exitCode, int32(exitCode))
	if exitCode == -1 && p.ctx.Err() != nil {
		log.Logger.Debugw("command was terminated by context cancellation", "command", p.commandArgs, "contextError", p.ctx.Err())
		return
	}
	log.Logger.Debugw("command exited with non-zero status", "error", err, "command", p.commandArgs, "exitCode", exitCode)
}

func (p *process) Close(ctx context.Context) error {
	if !p.Started() || p.Closed() {
		return nil
	}

	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()

	if p.cmd == nil {
		return errors.New("process not started")
	}

	if p.cmd.Process != nil && !p.exited.Load() {
		// SIGTERM the whole group first, then SIGKILL if it lingers.
		pgid := p.cmd.Process.Pid
		if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && err != unix.ESRCH {
			log.Logger.Warnw("failed to send SIGTERM to process group", "pgid", pgid, "error", err)
		}
		select {
		case <-ctx.Done():
		case <-p.errc:
		case <-time.After(3 * time.Second):
			if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && err != unix.ESRCH {
				log.Logger.Warnw("failed to send SIGKILL to process group", "pgid", pgid, "error", err)
			}
		}
	}
	p.cancel()

	if p.runBashFile != nil {
		_ = p.runBashFile.Close()
		if err := os.RemoveAll(p.runBashFile.Name()); err != nil {
			log.Logger.Warnw("failed to remove bash file", "error", err)
		}
	}

	if p.stdoutReadCloser != nil {
		_ = p.stdoutReadCloser.Close()
		p.stdoutReadCloser = nil
	}
	if p.stderrReadCloser != nil {
		_ = p.stderrReadCloser.Close()
		p.stderrReadCloser = nil
	}

	p.closedMu.Lock()
	p.closed = true
	p.closedMu.Unlock()

	return nil
}

func (p *process) Closed() bool {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()

	return p.closed
}

func (p *process) PID() int32 {
	return atomic.LoadInt32(&p.pid)
}

func (p *process) ExitCode() int32 {
	return atomic.LoadInt32(&p.exitCode)
}

func (p *process) StdoutReader() io.Reader {
	p.cmdMu.RLock()
	defer p.cmdMu.RUnlock()

	if p.outputFile != nil {
		return p.outputFile
	}
	return p.stdoutReadCloser
}

func (p *process) StderrReader() io.Reader {
	p.cmdMu.RLock()
	defer p.cmdMu.RUnlock()

	if p.outputFile != nil {
		return p.outputFile
	}
	return p.stderrReadCloser
}
