package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
)

const sampleManifest = `# Configuration file for locale-gen
#
#  <locale> <charset>
#aa_DJ.UTF-8 UTF-8
#de_DE ISO-8859-1
en_US.UTF-8 UTF-8
  de_DE.UTF-8 UTF-8
en_US ISO-8859-1
fr_FR.UTF-8 UTF-8
`

func TestParseManifest(t *testing.T) {
	locales, err := ParseManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, []string{"en_US.UTF-8", "de_DE.UTF-8", "fr_FR.UTF-8"}, locales)
}

func TestAvailableLocales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locale.gen")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	locales, err := AvailableLocales(path)
	require.NoError(t, err)
	assert.Len(t, locales, 3)

	_, err = AvailableLocales(filepath.Join(t.TempDir(), "missing.gen"))
	assert.Error(t, err)
}

func TestParseLocaleList(t *testing.T) {
	output := "C\nC.utf8\nPOSIX\nen_US.utf8\nde_DE.UTF-8\nde_DE\n\n"

	assert.Equal(t, []string{"C.UTF-8", "en_US.UTF-8", "de_DE.UTF-8"}, ParseLocaleList(output))
	assert.Empty(t, ParseLocaleList(""))
}

func TestGeneratedLocales(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		gotName, gotArgs = name, args
		return process.Result{Stdout: "C\nen_US.utf8\n"}, nil
	})

	locales, err := GeneratedLocales(context.Background(), runner, "locale")
	require.NoError(t, err)

	assert.Equal(t, "locale", gotName)
	assert.Equal(t, []string{"-a"}, gotArgs)
	assert.Equal(t, []string{"en_US.UTF-8"}, locales)
}

func TestGeneratedLocalesFailures(t *testing.T) {
	exitRunner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		return process.Result{ExitCode: 1, Stderr: "locale: broken\n"}, nil
	})
	_, err := GeneratedLocales(context.Background(), exitRunner, "locale")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locale: broken")

	spawnRunner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		return process.Result{ExitCode: -1}, &process.SpawnError{Name: name, Err: errors.New("not found")}
	})
	_, err = GeneratedLocales(context.Background(), spawnRunner, "locale")
	require.Error(t, err)
	var spawnErr *process.SpawnError
	assert.True(t, errors.As(err, &spawnErr))
}

func TestRebootRequired(t *testing.T) {
	sentinel := filepath.Join(t.TempDir(), "reboot-required")

	required, err := RebootRequired(sentinel)
	require.NoError(t, err)
	assert.False(t, required)

	require.NoError(t, os.WriteFile(sentinel, nil, 0o644))

	required, err = RebootRequired(sentinel)
	require.NoError(t, err)
	assert.True(t, required)
}

func TestProberReadsFreshState(t *testing.T) {
	root := t.TempDir()
	paths := Paths{
		ModulesDir:     filepath.Join(root, "modules"),
		LocaleConf:     filepath.Join(root, "locale.conf"),
		LocaleGen:      filepath.Join(root, "locale.gen"),
		RebootSentinel: filepath.Join(root, "reboot-required"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(paths.ModulesDir, "6.6.1-arch1-1"), 0o755))
	require.NoError(t, os.WriteFile(paths.LocaleConf, []byte("LANG=C.UTF-8\n"), 0o644))

	runner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		return process.Result{Stdout: "C.utf8\n"}, nil
	})
	p := NewProber(paths, runner, "").WithUname(func() (string, error) { return "6.6.1-arch1-1", nil })

	release, err := p.RunningKernel()
	require.NoError(t, err)
	assert.Equal(t, "6.6.1-arch1-1", release)

	kernels, err := p.InstalledKernels()
	require.NoError(t, err)
	assert.Len(t, kernels, 1)

	cfg, err := p.LocaleConf()
	require.NoError(t, err)
	assert.Equal(t, "C.UTF-8", cfg.Lang)

	// A later write is visible on the next read
	require.NoError(t, os.WriteFile(paths.LocaleConf, []byte("LANG=en_US.UTF-8\n"), 0o644))
	cfg, err = p.LocaleConf()
	require.NoError(t, err)
	assert.Equal(t, "en_US.UTF-8", cfg.Lang)

	generated, err := p.GeneratedLocales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"C.UTF-8"}, generated)

	reboot, err := p.RebootRequired()
	require.NoError(t, err)
	assert.False(t, reboot)
}
