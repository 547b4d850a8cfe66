package probe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// RunningKernel returns the release string of the live kernel.
func RunningKernel() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// KernelFlavor classifies an installed kernel by its version string.
// The first matching marker wins: lts, rt, zen; anything else is default.
func KernelFlavor(version string) string {
	switch {
	case strings.Contains(version, types.FlavorLTS):
		return types.FlavorLTS
	case strings.Contains(version, types.FlavorRT):
		return types.FlavorRT
	case strings.Contains(version, types.FlavorZen):
		return types.FlavorZen
	default:
		return types.FlavorDefault
	}
}

// KernelPackage returns the package name that ships a kernel of flavor.
func KernelPackage(flavor string) string {
	if flavor == types.FlavorDefault {
		return "linux"
	}
	return "linux-" + flavor
}

// InstalledKernels lists the kernels that have a module tree under dir.
// Each subdirectory name is a kernel version.
func InstalledKernels(dir string) ([]types.InstalledKernel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read module directory %s: %w", dir, err)
	}

	kernels := make([]types.InstalledKernel, 0, len(entries))
	for _, entry := range entries {
		if !isDir(dir, entry) {
			continue
		}
		version := entry.Name()
		flavor := KernelFlavor(version)
		kernels = append(kernels, types.InstalledKernel{
			Name:    KernelPackage(flavor),
			Version: version,
			Flavor:  flavor,
		})
	}
	return kernels, nil
}

// isDir follows symlinks so linked module trees still count.
func isDir(dir string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// isNotExist reports whether err means the file is absent.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
