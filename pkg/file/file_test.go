package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateExecutable(t *testing.T) {
	execPath, err := LocateExecutable("ls")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(execPath))
	t.Logf("found executable %q", execPath)
}

func TestLocateExecutableNotFound(t *testing.T) {
	_, err := LocateExecutable("definitely-not-a-real-binary-for-torchup")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestCheckExecutable(t *testing.T) {
	dir := t.TempDir()

	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0755))
	assert.NoError(t, CheckExecutable(script))

	plain := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0644))
	assert.Error(t, CheckExecutable(plain))

	assert.Error(t, CheckExecutable(dir))
	assert.Error(t, CheckExecutable(filepath.Join(dir, "missing")))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(f, nil, 0644))

	ok, err := Exists(f)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists("")
	require.NoError(t, err)
	assert.False(t, ok)
}
