package locale

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	hostlocale "github.com/GriffinCanCode/hostsync/internal/host/locale"
	"github.com/GriffinCanCode/hostsync/internal/host/probe"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

type fakeElevator struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeElevator) Run(ctx context.Context, name string, args ...string) types.MutationOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
}

func newTestProvider(t *testing.T) (*Provider, *fakeElevator, probe.Paths) {
	t.Helper()
	root := t.TempDir()
	paths := probe.Paths{
		ModulesDir:     filepath.Join(root, "modules"),
		LocaleConf:     filepath.Join(root, "locale.conf"),
		LocaleGen:      filepath.Join(root, "locale.gen"),
		RebootSentinel: filepath.Join(root, "reboot-required"),
	}
	require.NoError(t, os.WriteFile(paths.LocaleConf, []byte("LANG=en_US.UTF-8\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.LocaleGen, []byte("en_US.UTF-8 UTF-8\n#de_DE.UTF-8 UTF-8\n"), 0o644))

	runner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		return process.Result{Stdout: "C\nen_US.utf8\n"}, nil
	})
	elevator := &fakeElevator{}
	bus := broadcast.NewBus(nil)
	r := hostlocale.NewReconciler(
		probe.NewProber(paths, runner, "locale"),
		elevator,
		hostlocale.NewFileStore(paths.LocaleGen),
		bus,
		hostlocale.Commands{},
	)
	return NewProvider(r), elevator, paths
}

func TestProviderDefinition(t *testing.T) {
	p, _, _ := newTestProvider(t)
	def := p.Definition()

	assert.Equal(t, "locale", def.ID)
	assert.Equal(t, types.CategoryLocale, def.Category)
	require.Len(t, def.Tools, 3)
	assert.Len(t, def.Tools[1].Parameters, len(types.LocaleKeys))
}

func TestProviderStatus(t *testing.T) {
	p, _, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "locale.status", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	status, ok := result.Data["locale"].(types.LocaleStatus)
	require.True(t, ok)
	assert.Equal(t, "en_US.UTF-8", status.Current.Lang)
	assert.Equal(t, []string{"en_US.UTF-8"}, status.AvailableLocales)
}

func TestProviderApply(t *testing.T) {
	p, elevator, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "locale.apply", map[string]interface{}{
		"lang":    "de_DE.UTF-8",
		"LC_TIME": "en_GB.UTF-8",
	}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, elevator.calls, 1)
	assert.Equal(t, []string{"localectl", "set-locale", "LANG=de_DE.UTF-8", "LC_TIME=en_GB.UTF-8"}, elevator.calls[0])
}

func TestProviderApplyRejectsEmptyAndUnknown(t *testing.T) {
	p, elevator, _ := newTestProvider(t)

	result, err := p.Execute(context.Background(), "locale.apply", map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, hostlocale.ErrNoCategories.Error(), *result.Error)

	result, err = p.Execute(context.Background(), "locale.apply", map[string]interface{}{"LC_ALL": "C"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, *result.Error, "LC_ALL")

	assert.Empty(t, elevator.calls)
}

func TestProviderGenerate(t *testing.T) {
	p, elevator, paths := newTestProvider(t)

	result, err := p.Execute(context.Background(), "locale.generate", map[string]interface{}{"locale": "de_DE.UTF-8"}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	manifest, err := os.ReadFile(paths.LocaleGen)
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "\nde_DE.UTF-8 UTF-8\n")
	require.Len(t, elevator.calls, 1)
	assert.Equal(t, []string{"locale-gen"}, elevator.calls[0])
}

func TestConfigurationFromParams(t *testing.T) {
	cfg, err := ConfigurationFromParams(map[string]interface{}{"LANG": " fr_FR.UTF-8 ", "lc_numeric": "de_DE.UTF-8"})
	require.NoError(t, err)
	assert.Equal(t, "fr_FR.UTF-8", cfg.Lang)
	assert.Equal(t, "de_DE.UTF-8", cfg.LCNumeric)

	_, err = ConfigurationFromParams(map[string]interface{}{"LANG": 42})
	assert.Error(t, err)
}
