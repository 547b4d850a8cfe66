// Package probe reads live host state: the running and installed kernels,
// the persisted locale configuration, the locale generation manifest, the
// compiled locales, the reboot sentinel and the distribution name.
//
// Every call reads the host again. Nothing is cached, so a snapshot taken
// after a mutation reflects the mutation.
package probe

import (
	"context"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// Paths locates the host state sources.
type Paths struct {
	ModulesDir     string
	LocaleConf     string
	LocaleGen      string
	RebootSentinel string
	OSRelease      string
}

// Prober bundles the paths and utilities the individual probes need.
type Prober struct {
	paths     Paths
	runner    process.Runner
	localeBin string
	uname     func() (string, error)
}

// NewProber creates a prober. runner executes the non-privileged locale
// utility named by localeBin.
func NewProber(paths Paths, runner process.Runner, localeBin string) *Prober {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if localeBin == "" {
		localeBin = "locale"
	}
	return &Prober{
		paths:     paths,
		runner:    runner,
		localeBin: localeBin,
		uname:     RunningKernel,
	}
}

// WithUname replaces the running-kernel source.
func (p *Prober) WithUname(fn func() (string, error)) *Prober {
	p.uname = fn
	return p
}

// RunningKernel returns the live kernel release.
func (p *Prober) RunningKernel() (string, error) {
	return p.uname()
}

// InstalledKernels lists kernels with a module tree.
func (p *Prober) InstalledKernels() ([]types.InstalledKernel, error) {
	return InstalledKernels(p.paths.ModulesDir)
}

// LocaleConf reads the persisted locale configuration.
func (p *Prober) LocaleConf() (types.LocaleConfiguration, error) {
	return ReadLocaleConf(p.paths.LocaleConf)
}

// AvailableLocales reads the generation manifest.
func (p *Prober) AvailableLocales() ([]string, error) {
	return AvailableLocales(p.paths.LocaleGen)
}

// GeneratedLocales lists compiled UTF-8 locales.
func (p *Prober) GeneratedLocales(ctx context.Context) ([]string, error) {
	return GeneratedLocales(ctx, p.runner, p.localeBin)
}

// Distro names the host distribution.
func (p *Prober) Distro() (string, error) {
	return Distro(p.paths.OSRelease)
}

// RebootRequired checks the reboot sentinel.
func (p *Prober) RebootRequired() (bool, error) {
	return RebootRequired(p.paths.RebootSentinel)
}
