// Package cuda detects the CUDA toolkit version installed on the host.
package cuda

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/leptonai/torchup/pkg/file"
	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/process"
)

const (
	ProbeNVCC      = "nvcc"
	ProbeNvidiaSMI = "nvidia-smi"
	ProbeCUDAHome  = "cuda-home"
	ProbeLdconfig  = "ldconfig"

	DefaultCUDAHome = "/usr/local/cuda"
)

// ErrNotFound is returned by a probe whose tool or file is absent,
// or whose output has no parseable version.
var ErrNotFound = errors.New("cuda version not found")

// Result is a detected CUDA version.
type Result struct {
	// Version is the "major.minor" version, e.g., "12.1".
	Version string `json:"version"`
	// Source is the name of the probe that found the version.
	Source string `json:"source"`
}

// Attempt records the outcome of one probe, for reporting.
type Attempt struct {
	Probe   string `json:"probe"`
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Probe is one independent source of the CUDA version.
type Probe struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// CommandRunner runs a command and returns its combined output.
type CommandRunner func(ctx context.Context, bin string, args ...string) ([]byte, error)

// PlatformSupported returns false on hosts where CUDA wheels do not exist (macOS).
func PlatformSupported() bool {
	return runtime.GOOS != "darwin"
}

// Detect runs the probes in order and returns the first version found.
// Returns nil if no probe finds a version.
// The attempts list every probe, including the ones skipped after the first success.
func Detect(ctx context.Context, probes []Probe, timeout time.Duration) (*Result, []Attempt) {
	attempts := make([]Attempt, 0, len(probes))

	var found *Result
	for _, p := range probes {
		if found != nil {
			attempts = append(attempts, Attempt{Probe: p.Name, Skipped: true})
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		v, err := p.Run(cctx)
		cancel()

		if err != nil || v == "" {
			reason := "no version in output"
			if err != nil {
				reason = err.Error()
			}
			log.Logger.Debugw("cuda probe found nothing", "probe", p.Name, "reason", reason)
			attempts = append(attempts, Attempt{Probe: p.Name, Reason: reason})
			continue
		}

		log.Logger.Infow("detected cuda version", "probe", p.Name, "version", v)
		attempts = append(attempts, Attempt{Probe: p.Name, Version: v})
		found = &Result{Version: v, Source: p.Name}
	}
	return found, attempts
}

type Op struct {
	runner           CommandRunner
	locateExecutable func(string) (string, error)
	cudaHome         string
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.runner == nil {
		op.runner = runCommand
	}
	if op.locateExecutable == nil {
		op.locateExecutable = file.LocateExecutable
	}
	if op.cudaHome == "" {
		op.cudaHome = DefaultCUDAHomeFromEnv()
	}
}

// WithCommandRunner overrides how probe commands are executed.
func WithCommandRunner(runner CommandRunner) OpOption {
	return func(op *Op) {
		op.runner = runner
	}
}

// WithLocateExecutable overrides how probe executables are located.
func WithLocateExecutable(fn func(string) (string, error)) OpOption {
	return func(op *Op) {
		op.locateExecutable = fn
	}
}

// WithCUDAHome sets the toolkit installation directory
// where "version.txt" or "version.json" are looked up.
func WithCUDAHome(dir string) OpOption {
	return func(op *Op) {
		op.cudaHome = dir
	}
}

// DefaultCUDAHomeFromEnv returns $CUDA_HOME, $CUDA_PATH or "/usr/local/cuda".
func DefaultCUDAHomeFromEnv() string {
	for _, k := range []string{"CUDA_HOME", "CUDA_PATH"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return DefaultCUDAHome
}

// DefaultProbes returns the probes in the order they should be tried:
// the compiler driver, the monitoring utility, the toolkit directory,
// then the dynamic linker cache.
func DefaultProbes(opts ...OpOption) []Probe {
	op := &Op{}
	op.applyOpts(opts)

	return []Probe{
		{Name: ProbeNVCC, Run: op.commandProbe("nvcc", ParseNVCCOutput, "--version")},
		{Name: ProbeNvidiaSMI, Run: op.commandProbe("nvidia-smi", ParseSMIOutput)},
		{Name: ProbeCUDAHome, Run: op.probeCUDAHome},
		{Name: ProbeLdconfig, Run: op.commandProbe("ldconfig", ParseLdconfigOutput, "-p")},
	}
}

func (op *Op) commandProbe(bin string, parse func([]byte) (string, bool), args ...string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		p, err := op.locateExecutable(bin)
		if err != nil {
			return "", fmt.Errorf("%w: %s not installed", ErrNotFound, bin)
		}

		out, err := op.runner(ctx, p, args...)
		if err != nil {
			return "", fmt.Errorf("%w: %s failed (%v)", ErrNotFound, bin, err)
		}

		v, ok := parse(out)
		if !ok {
			return "", fmt.Errorf("%w: no version in %s output", ErrNotFound, bin)
		}
		return v, nil
	}
}

// probeCUDAHome reads "version.txt" (CUDA <= 11.0) or "version.json" (CUDA >= 11.1).
func (op *Op) probeCUDAHome(_ context.Context) (string, error) {
	txt := filepath.Join(op.cudaHome, "version.txt")
	if b, err := os.ReadFile(txt); err == nil {
		if v, ok := ParseVersionTxt(b); ok {
			return v, nil
		}
	}

	js := filepath.Join(op.cudaHome, "version.json")
	b, err := os.ReadFile(js)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no version file in %s", ErrNotFound, op.cudaHome)
		}
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	v, err := ParseVersionJSON(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if v == "" {
		return "", fmt.Errorf("%w: no version in %s", ErrNotFound, js)
	}
	return v, nil
}

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	p, err := process.New(process.WithCommand(append([]string{bin}, args...)...))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.Close(ctx); err != nil {
			log.Logger.Warnw("failed to close process", "command", bin, "error", err)
		}
	}()
	return p.StartAndWaitForCombinedOutput(ctx)
}
