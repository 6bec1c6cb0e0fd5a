package pyenv

import (
	"context"
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/util/version"

	"github.com/leptonai/torchup/pkg/file"
	"github.com/leptonai/torchup/pkg/log"
	"github.com/leptonai/torchup/pkg/process"
)

// PEP 668 marker placed in the stdlib directory by distributions
// that manage the system interpreter themselves.
const externallyManagedMarker = "EXTERNALLY-MANAGED"

// Interpreters from this version on are typically shipped externally managed.
var externallyManagedSince = version.MustParseGeneric("3.11")

// Prints the stdlib directory and the "major.minor" interpreter version.
const pythonInfoSnippet = `import sys, sysconfig; print(sysconfig.get_path("stdlib")); print("%d.%d" % sys.version_info[:2])`

// PythonRunner runs the interpreter with the given arguments and returns its output.
type PythonRunner func(ctx context.Context, python string, args ...string) ([]byte, error)

// PythonInfo is what the system interpreter reports about itself.
type PythonInfo struct {
	Stdlib  string
	Version string
}

// QueryPython asks the interpreter for its stdlib directory and version.
func QueryPython(ctx context.Context, python string, run PythonRunner) (PythonInfo, error) {
	if run == nil {
		run = RunPython
	}
	out, err := run(ctx, python, "-c", pythonInfoSnippet)
	if err != nil {
		return PythonInfo{}, err
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	info := PythonInfo{}
	if len(lines) > 0 {
		info.Stdlib = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		info.Version = strings.TrimSpace(lines[1])
	}
	return info, nil
}

// ExternallyManaged returns true if installing into the interpreter requires
// "--break-system-packages": the PEP 668 marker is present, or the marker
// cannot be checked and the interpreter is new enough to likely carry it.
func (info PythonInfo) ExternallyManaged() bool {
	if info.Stdlib != "" {
		ok, err := file.Exists(filepath.Join(info.Stdlib, externallyManagedMarker))
		if err == nil {
			return ok
		}
		log.Logger.Debugw("failed to check the externally managed marker", "stdlib", info.Stdlib, "error", err)
	}

	v, err := version.ParseGeneric(info.Version)
	if err != nil {
		// unknown interpreter, assume the strictest behavior
		return true
	}
	return v.AtLeast(externallyManagedSince)
}

func RunPython(ctx context.Context, python string, args ...string) ([]byte, error) {
	p, err := process.New(process.WithCommand(append([]string{python}, args...)...))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = p.Close(ctx)
	}()
	return p.StartAndWaitForCombinedOutput(ctx)
}
