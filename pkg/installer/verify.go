package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leptonai/torchup/pkg/pyenv"
)

var ErrVerifyFailed = errors.New("verification failed")

// Prints one JSON line describing the installed torch runtime.
const verifySnippet = `
import json
try:
    import torch
except Exception as e:
    print(json.dumps({"error": str(e)}))
    raise SystemExit(1)
available = torch.cuda.is_available()
print(json.dumps({
    "torch_version": torch.__version__,
    "cuda_available": available,
    "cuda_version": torch.version.cuda or "",
    "device_count": torch.cuda.device_count() if available else 0,
    "device_name": torch.cuda.get_device_name(0) if available else "",
}))
`

// Verification is what the installed torch reports about itself.
type Verification struct {
	TorchVersion  string `json:"torch_version"`
	CUDAAvailable bool   `json:"cuda_available"`
	CUDAVersion   string `json:"cuda_version,omitempty"`
	DeviceCount   int    `json:"device_count"`
	DeviceName    string `json:"device_name,omitempty"`

	Error string `json:"error,omitempty"`
}

// Verify imports torch with the target interpreter and reports its runtime facts.
func Verify(ctx context.Context, target *pyenv.Target, run pyenv.PythonRunner) (*Verification, error) {
	out, runErr := run(ctx, target.Python, "-c", verifySnippet)

	v, err := ParseVerification(out)
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("%w: %v\n\noutput:\n%s", ErrVerifyFailed, runErr, out)
		}
		return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if v.Error != "" {
		return v, fmt.Errorf("%w: failed to import torch: %s", ErrVerifyFailed, v.Error)
	}
	if runErr != nil {
		return v, fmt.Errorf("%w: %v", ErrVerifyFailed, runErr)
	}
	return v, nil
}

// ParseVerification decodes the last JSON line of the verification output,
// ignoring any warnings the interpreter printed before it.
func ParseVerification(out []byte) (*Verification, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if !bytes.HasPrefix(line, []byte("{")) {
			continue
		}
		v := &Verification{}
		if err := json.Unmarshal(line, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, errors.New("no verification output")
}
