package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type OpOption func(*Op)

type Op struct {
	envs       []string
	outputFile *os.File

	commandsToRun           [][]string
	bashScriptContentsToRun string
}

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}

	if len(op.commandsToRun) == 0 && op.bashScriptContentsToRun == "" {
		return errors.New("no command(s) or bash script contents provided")
	}
	if op.bashScriptContentsToRun == "" && len(op.commandsToRun) > 1 {
		return errors.New("cannot run multiple commands without a bash script")
	}
	for _, args := range op.commandsToRun {
		if len(args) == 0 {
			return errors.New("empty command")
		}
		cmd := strings.Split(args[0], " ")[0]
		if !commandExists(cmd) {
			return fmt.Errorf("command not found: %q", cmd)
		}
	}

	foundEnvs := make(map[string]any)
	for _, env := range op.envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid environment variable format: %s", env)
		}
		if _, ok := foundEnvs[parts[0]]; ok {
			return fmt.Errorf("duplicate environment variable: %s", parts[0])
		}
		foundEnvs[parts[0]] = parts[1]
	}

	return nil
}

// Add a new environment variable to the process
// in the format of `KEY=VALUE`.
// The variables are appended to the current process environment.
func WithEnvs(envs ...string) OpOption {
	return func(op *Op) {
		op.envs = append(op.envs, envs...)
	}
}

// Add a new command to run.
// With bash script contents, the commands are appended to the script
// and args[0] may hold a whole shell command line.
func WithCommand(args ...string) OpOption {
	return func(op *Op) {
		op.commandsToRun = append(op.commandsToRun, args)
	}
}

// Sets the bash script contents to run.
func WithBashScriptContentsToRun(script string) OpOption {
	return func(op *Op) {
		op.bashScriptContentsToRun = script
	}
}

// Sets the file to which stderr and stdout will be written.
// For instance, set it to os.Stdout to stream the installer output
// to the user's terminal.
// Default is to set the os.Pipe to forward its output via io.ReadCloser.
func WithOutputFile(file *os.File) OpOption {
	return func(op *Op) {
		op.outputFile = file
	}
}

func commandExists(name string) bool {
	p, err := exec.LookPath(name)
	if err != nil {
		return false
	}
	return p != ""
}
