package installer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonai/torchup/pkg/channel"
	"github.com/leptonai/torchup/pkg/cuda"
	"github.com/leptonai/torchup/pkg/host"
	"github.com/leptonai/torchup/pkg/pyenv"
	"github.com/leptonai/torchup/pkg/validation"
)

func TestRun(t *testing.T) {
	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer out.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("success", func(t *testing.T) {
		plan := &Plan{Program: "echo", Args: []string{"install", "torch"}}
		require.NoError(t, Run(ctx, plan, out))

		b, err := os.ReadFile(out.Name())
		require.NoError(t, err)
		assert.Contains(t, string(b), "install torch")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		plan := &Plan{Program: "sh", Args: []string{"-c", "exit 3"}}
		err := Run(ctx, plan, out)
		require.ErrorIs(t, err, ErrInstallFailed)
		assert.Contains(t, err.Error(), "exit code 3")
	})

	t.Run("installer environment", func(t *testing.T) {
		envOut, err := os.CreateTemp(t.TempDir(), "env")
		require.NoError(t, err)
		defer envOut.Close()

		plan := &Plan{Program: "sh", Args: []string{"-c", `echo "check=$PIP_DISABLE_PIP_VERSION_CHECK input=$PIP_NO_INPUT"`}}
		require.NoError(t, Run(ctx, plan, envOut))

		b, err := os.ReadFile(envOut.Name())
		require.NoError(t, err)
		assert.Equal(t, "check=1 input=1\n", string(b))
	})

	t.Run("missing program", func(t *testing.T) {
		plan := &Plan{Program: filepath.Join(t.TempDir(), "no-such-pip"), Args: []string{"install"}}
		assert.ErrorIs(t, Run(ctx, plan, out), ErrInstallFailed)
	})
}

func fakeRunner(out string, err error) pyenv.PythonRunner {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestVerify(t *testing.T) {
	target := pyenv.NewVenvTarget(pyenv.KindVenv, "env")

	t.Run("cuda available", func(t *testing.T) {
		out := "some warning\n" + `{"torch_version": "2.4.0+cu121", "cuda_available": true, "cuda_version": "12.1", "device_count": 8, "device_name": "NVIDIA H100 80GB HBM3"}` + "\n"

		var gotPython string
		v, err := Verify(context.Background(), target, func(_ context.Context, python string, args ...string) ([]byte, error) {
			gotPython = python
			return []byte(out), nil
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("env", "bin", "python"), gotPython)
		assert.Equal(t, "2.4.0+cu121", v.TorchVersion)
		assert.True(t, v.CUDAAvailable)
		assert.Equal(t, "12.1", v.CUDAVersion)
		assert.Equal(t, 8, v.DeviceCount)
	})

	t.Run("cpu build", func(t *testing.T) {
		v, err := Verify(context.Background(), target, fakeRunner(`{"torch_version": "2.4.0+cpu", "cuda_available": false, "cuda_version": "", "device_count": 0, "device_name": ""}`, nil))
		require.NoError(t, err)
		assert.False(t, v.CUDAAvailable)
		assert.Zero(t, v.DeviceCount)
	})

	t.Run("import error", func(t *testing.T) {
		_, err := Verify(context.Background(), target, fakeRunner(`{"error": "No module named 'torch'"}`, errors.New("exit status 1")))
		require.ErrorIs(t, err, ErrVerifyFailed)
		assert.Contains(t, err.Error(), "No module named")
	})

	t.Run("interpreter missing", func(t *testing.T) {
		_, err := Verify(context.Background(), target, fakeRunner("", errors.New("command not found")))
		assert.ErrorIs(t, err, ErrVerifyFailed)
	})

	t.Run("garbage output", func(t *testing.T) {
		_, err := Verify(context.Background(), target, fakeRunner("{not json", nil))
		assert.ErrorIs(t, err, ErrVerifyFailed)
	})
}

func TestReportRenderTable(t *testing.T) {
	sel := channel.Select("12.1")
	target := pyenv.NewVenvTarget(pyenv.KindVenv, "myenv")
	plan := &Plan{
		Program:  "myenv/bin/pip",
		Args:     []string{"install", "torch", "--index-url", channel.IndexURL(sel.Tag)},
		Packages: []string{"torch"},
		IndexURL: channel.IndexURL(sel.Tag),
		Channel:  sel,
		Target:   target,
	}

	started := time.Now().Add(-2 * time.Minute)
	r := &Report{
		Host:     host.Info{OS: "linux", Arch: "x86_64", Platform: "ubuntu", PlatformVersion: "22.04"},
		Detected: &cuda.Result{Version: "12.1", Source: cuda.ProbeNVCC},
		Attempts: []cuda.Attempt{
			{Probe: cuda.ProbeNVCC, Version: "12.1"},
			{Probe: cuda.ProbeNvidiaSMI, Skipped: true},
		},
		Plan:      plan,
		Disk:      &validation.DiskRequirements{Path: "/home", FreeBytes: 20 * 1024 * 1024 * 1024},
		StartedAt: started,
		Verification: &Verification{
			TorchVersion:  "2.4.0+cu121",
			CUDAAvailable: true,
			CUDAVersion:   "12.1",
			DeviceCount:   1,
			DeviceName:    "NVIDIA A10G",
		},
	}
	r.SetElapsed(started.Add(2 * time.Minute))
	assert.Equal(t, "2 minutes", r.Elapsed)

	buf := bytes.NewBuffer(nil)
	r.RenderTable(buf)
	s := buf.String()
	for _, want := range []string{
		"ubuntu 22.04 (x86_64)",
		"cu121 (CUDA 12.1)",
		"https://download.pytorch.org/whl/cu121",
		"venv (myenv)",
		"skipped",
		"2.4.0+cu121",
		"1 x NVIDIA A10G",
		"20 GiB at /home",
	} {
		assert.True(t, strings.Contains(s, want), "missing %q in\n%s", want, s)
	}

	var nilReport *Report
	nilReport.RenderTable(buf)
}
