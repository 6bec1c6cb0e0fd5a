package cuda

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticProbe(name, version string, err error, calls *[]string) Probe {
	return Probe{
		Name: name,
		Run: func(context.Context) (string, error) {
			*calls = append(*calls, name)
			return version, err
		},
	}
}

func TestDetectFirstSuccessWins(t *testing.T) {
	calls := []string{}
	probes := []Probe{
		staticProbe("a", "", ErrNotFound, &calls),
		staticProbe("b", "12.1", nil, &calls),
		staticProbe("c", "11.8", nil, &calls),
	}

	res, attempts := Detect(context.Background(), probes, time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "12.1", res.Version)
	assert.Equal(t, "b", res.Source)
	assert.Equal(t, []string{"a", "b"}, calls)

	require.Len(t, attempts, 3)
	assert.NotEmpty(t, attempts[0].Reason)
	assert.Equal(t, "12.1", attempts[1].Version)
	assert.True(t, attempts[2].Skipped)
}

func TestDetectNone(t *testing.T) {
	calls := []string{}
	probes := []Probe{
		staticProbe("a", "", ErrNotFound, &calls),
		staticProbe("b", "", nil, &calls),
		staticProbe("c", "", errors.New("permission denied"), &calls),
	}

	res, attempts := Detect(context.Background(), probes, time.Second)
	assert.Nil(t, res)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	require.Len(t, attempts, 3)
	assert.Equal(t, "no version in output", attempts[1].Reason)
	assert.Equal(t, "permission denied", attempts[2].Reason)
}

func TestDetectAppliesTimeout(t *testing.T) {
	probes := []Probe{{
		Name: "slow",
		Run: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}

	res, attempts := Detect(context.Background(), probes, 10*time.Millisecond)
	assert.Nil(t, res)
	require.Len(t, attempts, 1)
	assert.Contains(t, attempts[0].Reason, "deadline")
}

type fakeTools struct {
	installed map[string]bool
	outputs   map[string]string
	failures  map[string]error
	ran       []string
}

func (f *fakeTools) locate(bin string) (string, error) {
	if !f.installed[bin] {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + bin, nil
}

func (f *fakeTools) run(_ context.Context, bin string, _ ...string) ([]byte, error) {
	name := filepath.Base(bin)
	f.ran = append(f.ran, name)
	if err := f.failures[name]; err != nil {
		return nil, err
	}
	return []byte(f.outputs[name]), nil
}

func (f *fakeTools) opts(cudaHome string) []OpOption {
	return []OpOption{
		WithLocateExecutable(f.locate),
		WithCommandRunner(f.run),
		WithCUDAHome(cudaHome),
	}
}

func TestDefaultProbesOrder(t *testing.T) {
	probes := DefaultProbes(WithCUDAHome(t.TempDir()))
	names := []string{}
	for _, p := range probes {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{ProbeNVCC, ProbeNvidiaSMI, ProbeCUDAHome, ProbeLdconfig}, names)
}

func TestDefaultProbesNVCC(t *testing.T) {
	tools := &fakeTools{
		installed: map[string]bool{"nvcc": true, "nvidia-smi": true},
		outputs: map[string]string{
			"nvcc":       "Cuda compilation tools, release 11.8, V11.8.89",
			"nvidia-smi": "CUDA Version: 12.2",
		},
	}

	res, _ := Detect(context.Background(), DefaultProbes(tools.opts(t.TempDir())...), time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "11.8", res.Version)
	assert.Equal(t, ProbeNVCC, res.Source)
	assert.Equal(t, []string{"nvcc"}, tools.ran)
}

func TestDefaultProbesFallsThroughToSMI(t *testing.T) {
	tools := &fakeTools{
		installed: map[string]bool{"nvidia-smi": true, "ldconfig": true},
		outputs: map[string]string{
			"nvidia-smi": "| NVIDIA-SMI 550.54.15   Driver Version: 550.54.15   CUDA Version: 12.4 |",
		},
	}

	res, attempts := Detect(context.Background(), DefaultProbes(tools.opts(t.TempDir())...), time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "12.4", res.Version)
	assert.Equal(t, ProbeNvidiaSMI, res.Source)
	assert.Contains(t, attempts[0].Reason, "not installed")
}

func TestDefaultProbesSMIFailureFallsThrough(t *testing.T) {
	tools := &fakeTools{
		installed: map[string]bool{"nvidia-smi": true, "ldconfig": true},
		failures:  map[string]error{"nvidia-smi": errors.New("exit status 9")},
		outputs: map[string]string{
			"ldconfig": "\tlibcudart.so.11.7 (libc6,x86-64) => /usr/lib/libcudart.so.11.7\n",
		},
	}

	res, _ := Detect(context.Background(), DefaultProbes(tools.opts(t.TempDir())...), time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "11.7", res.Version)
	assert.Equal(t, ProbeLdconfig, res.Source)
	assert.Equal(t, []string{"nvidia-smi", "ldconfig"}, tools.ran)
}

func TestDefaultProbesCUDAHomeVersionTxt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version.txt"), []byte("CUDA Version 11.6.124\n"), 0644))

	tools := &fakeTools{}
	res, _ := Detect(context.Background(), DefaultProbes(tools.opts(dir)...), time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "11.6", res.Version)
	assert.Equal(t, ProbeCUDAHome, res.Source)
}

func TestDefaultProbesCUDAHomeVersionJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version.json"), []byte(`{"cuda": {"name": "CUDA SDK", "version": "12.6.2"}}`), 0644))

	tools := &fakeTools{}
	res, _ := Detect(context.Background(), DefaultProbes(tools.opts(dir)...), time.Second)
	require.NotNil(t, res)
	assert.Equal(t, "12.6", res.Version)
	assert.Equal(t, ProbeCUDAHome, res.Source)
}

func TestDefaultProbesNothingInstalled(t *testing.T) {
	tools := &fakeTools{}
	res, attempts := Detect(context.Background(), DefaultProbes(tools.opts(t.TempDir())...), time.Second)
	assert.Nil(t, res)
	require.Len(t, attempts, 4)
	for _, a := range attempts {
		assert.Empty(t, a.Version)
		assert.False(t, a.Skipped)
	}
	assert.Empty(t, tools.ran)
}

func TestDefaultCUDAHomeFromEnv(t *testing.T) {
	t.Setenv("CUDA_HOME", "")
	t.Setenv("CUDA_PATH", "")
	assert.Equal(t, DefaultCUDAHome, DefaultCUDAHomeFromEnv())

	t.Setenv("CUDA_PATH", "/opt/cuda")
	assert.Equal(t, "/opt/cuda", DefaultCUDAHomeFromEnv())

	t.Setenv("CUDA_HOME", "/usr/local/cuda-12.1")
	assert.Equal(t, "/usr/local/cuda-12.1", DefaultCUDAHomeFromEnv())
}

func TestRunCommand(t *testing.T) {
	out, err := runCommand(context.Background(), "echo", "release", "12.1,")
	require.NoError(t, err)
	v, ok := ParseNVCCOutput(out)
	require.True(t, ok)
	assert.Equal(t, "12.1", v)
}
