package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

func TestKernelFlavor(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"6.6.1-arch1-1", types.FlavorDefault},
		{"6.1.62-1-lts", types.FlavorLTS},
		{"6.6.1-rt15-arch1-1", types.FlavorRT},
		{"6.6.1-zen1-1-zen", types.FlavorZen},
		{"6.1.0-lts-rt", types.FlavorLTS},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, KernelFlavor(tt.version))
		})
	}
}

func TestInstalledKernels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "6.6.1-arch1-1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "6.1.62-1-lts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a kernel"), 0o644))

	target := t.TempDir()
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "6.6.1-zen1-1-zen")))

	kernels, err := InstalledKernels(dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []types.InstalledKernel{
		{Name: "linux", Version: "6.6.1-arch1-1", Flavor: types.FlavorDefault},
		{Name: "linux-lts", Version: "6.1.62-1-lts", Flavor: types.FlavorLTS},
		{Name: "linux-zen", Version: "6.6.1-zen1-1-zen", Flavor: types.FlavorZen},
	}, kernels)
}

func TestInstalledKernelsEmptyDirectory(t *testing.T) {
	kernels, err := InstalledKernels(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, kernels)
}

func TestInstalledKernelsMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "modules")

	_, err := InstalledKernels(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func TestRunningKernel(t *testing.T) {
	release, err := RunningKernel()
	require.NoError(t, err)
	assert.NotEmpty(t, release)
}
