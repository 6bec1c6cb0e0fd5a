package validation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonai/torchup/pkg/channel"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		req         DiskRequirements
		expectedErr error
		expectedMsg string
	}{
		{
			name: "enough space",
			req: DiskRequirements{
				Path:             "/data",
				FreeBytes:        10 * 1024 * 1024 * 1024,
				MinimumFreeBytes: MinimumFreeBytesCUDA,
			},
		},
		{
			name: "exactly the minimum",
			req: DiskRequirements{
				Path:             "/data",
				FreeBytes:        MinimumFreeBytesCPU,
				MinimumFreeBytes: MinimumFreeBytesCPU,
			},
		},
		{
			name: "insufficient",
			req: DiskRequirements{
				Path:             "/data",
				FreeBytes:        1024 * 1024 * 1024,
				MinimumFreeBytes: MinimumFreeBytesCUDA,
			},
			expectedErr: ErrInsufficientDisk,
			expectedMsg: "insufficient disk space at /data: 1.0 GiB free (minimum 8.0 GiB)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Check()
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.expectedErr))
			assert.Equal(t, tt.expectedMsg, err.Error())
		})
	}
}

func TestMinimumFreeBytes(t *testing.T) {
	assert.Equal(t, uint64(MinimumFreeBytesCPU), MinimumFreeBytes(channel.TagCPU))
	assert.Equal(t, uint64(MinimumFreeBytesCUDA), MinimumFreeBytes(channel.TagCU121))
}

func TestGetDiskRequirements(t *testing.T) {
	dir := t.TempDir()

	// the environment does not exist yet, its parent is used
	req, err := GetDiskRequirements(context.Background(), filepath.Join(dir, "env", "nested"), channel.TagCPU)
	require.NoError(t, err)
	assert.Equal(t, dir, req.Path)
	assert.Greater(t, req.FreeBytes, uint64(0))
	assert.Equal(t, uint64(MinimumFreeBytesCPU), req.MinimumFreeBytes)
	assert.NotEmpty(t, req.FormatFreeHumanized())
}
