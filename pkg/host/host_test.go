package host

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	info := Load(context.Background())
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.String())
}

func TestInfoString(t *testing.T) {
	assert.Equal(t, "ubuntu 22.04 (x86_64)", Info{OS: "linux", Arch: "x86_64", Platform: "ubuntu", PlatformVersion: "22.04"}.String())
	assert.Equal(t, "linux (arm64)", Info{OS: "linux", Arch: "arm64"}.String())
}
