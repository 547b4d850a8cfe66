package locale

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/host/probe"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

type call struct {
	name string
	args []string
}

// fakeElevator records privileged calls and answers through onRun.
type fakeElevator struct {
	mu    sync.Mutex
	calls []call
	onRun func(name string, args []string) types.MutationOutcome
}

func (f *fakeElevator) Run(ctx context.Context, name string, args ...string) types.MutationOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.onRun != nil {
		return f.onRun(name, args)
	}
	return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
}

func (f *fakeElevator) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.name
	}
	return names
}

type published struct {
	channel string
	success bool
	data    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(channel string, success bool, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{channel, success, data})
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

// countingStore counts manifest writes.
type countingStore struct {
	*FileStore
	writes int
}

func (s *countingStore) Write(ctx context.Context, content []byte) error {
	s.writes++
	return s.FileStore.Write(ctx, content)
}

type fixture struct {
	paths     probe.Paths
	elevator  *fakeElevator
	publisher *recordingPublisher
	store     *countingStore
	r         *Reconciler
}

func newFixture(t *testing.T, manifest string) *fixture {
	t.Helper()
	root := t.TempDir()
	paths := probe.Paths{
		ModulesDir:     filepath.Join(root, "modules"),
		LocaleConf:     filepath.Join(root, "locale.conf"),
		LocaleGen:      filepath.Join(root, "locale.gen"),
		RebootSentinel: filepath.Join(root, "reboot-required"),
	}
	require.NoError(t, os.WriteFile(paths.LocaleConf, []byte("LANG=C.UTF-8\n"), 0o644))
	require.NoError(t, os.WriteFile(paths.LocaleGen, []byte(manifest), 0o644))

	runner := process.RunnerFunc(func(ctx context.Context, name string, args ...string) (process.Result, error) {
		return process.Result{Stdout: "C\nC.utf8\nen_US.utf8\n"}, nil
	})

	f := &fixture{
		paths:     paths,
		elevator:  &fakeElevator{},
		publisher: &recordingPublisher{},
		store:     &countingStore{FileStore: NewFileStore(paths.LocaleGen)},
	}
	f.r = NewReconciler(probe.NewProber(paths, runner, "locale"), f.elevator, f.store, f.publisher, Commands{})
	return f
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "en_US.UTF-8 UTF-8\n#de_DE.UTF-8 UTF-8\n")

	status, err := f.r.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "C.UTF-8", status.Current.Lang)
	assert.Equal(t, []string{"en_US.UTF-8"}, status.AvailableLocales)
	assert.Equal(t, []string{"C.UTF-8", "en_US.UTF-8"}, status.GeneratedLocales)
	assert.False(t, status.RebootRequired)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.ChannelLocale, events[0].channel)
	assert.True(t, events[0].success)
	assert.Equal(t, status, events[0].data)
}

func TestStatusFailsWhenManifestUnreadable(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.Remove(f.paths.LocaleGen))

	_, err := f.r.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), f.paths.LocaleGen)
	assert.Empty(t, f.publisher.all())
}

func TestApplyLocaleBuildsOrderedCommand(t *testing.T) {
	f := newFixture(t, "")

	out, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{
		LCTime: "en_GB.UTF-8",
		Lang:   "en_US.UTF-8",
	})
	require.NoError(t, err)

	assert.True(t, out.Succeeded)
	assert.Equal(t, "Locale applied. A reboot may be required.", out.Message)
	require.Len(t, f.elevator.calls, 1)
	assert.Equal(t, "localectl", f.elevator.calls[0].name)
	assert.Equal(t, []string{"set-locale", "LANG=en_US.UTF-8", "LC_TIME=en_GB.UTF-8"}, f.elevator.calls[0].args)
}

func TestApplyLocaleWithoutCategories(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{})

	assert.True(t, errors.Is(err, ErrNoCategories))
	assert.Empty(t, f.elevator.calls)
	assert.Empty(t, f.publisher.all())
}

func TestApplyLocaleRejectsInjectedValues(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{Lang: "en_US.UTF-8 LC_ALL=C"})

	assert.True(t, errors.Is(err, ErrInvalidLocale))
	assert.Empty(t, f.elevator.calls)
}

func TestApplyLocalePublishesFailureAndFreshStatus(t *testing.T) {
	f := newFixture(t, "en_US.UTF-8 UTF-8\n")
	denied := types.MutationOutcome{
		Kind:     types.KindAuthDenied,
		ExitCode: 127,
		Message:  "Root permission denied or cancelled by user. (Exit Code: 127)",
	}
	f.elevator.onRun = func(string, []string) types.MutationOutcome { return denied }

	out, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{Lang: "en_US.UTF-8"})
	require.NoError(t, err)
	assert.Equal(t, denied, out)

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.False(t, events[0].success)
	assert.Equal(t, denied, events[0].data)

	assert.True(t, events[1].success)
	status, ok := events[1].data.(types.LocaleStatus)
	require.True(t, ok)
	assert.Equal(t, "C.UTF-8", status.Current.Lang)
}

func TestApplyLocaleStatusReflectsHostAfterSuccess(t *testing.T) {
	f := newFixture(t, "en_US.UTF-8 UTF-8\n")
	f.elevator.onRun = func(name string, args []string) types.MutationOutcome {
		// Simulate localectl persisting the new value
		require.NoError(t, os.WriteFile(f.paths.LocaleConf, []byte("LANG=en_US.UTF-8\n"), 0o644))
		return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
	}

	_, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{Lang: "en_US.UTF-8"})
	require.NoError(t, err)

	events := f.publisher.all()
	require.Len(t, events, 2)
	status := events[1].data.(types.LocaleStatus)
	assert.Equal(t, "en_US.UTF-8", status.Current.Lang)
}

func TestApplyLocaleReportsRefreshFailure(t *testing.T) {
	f := newFixture(t, "")
	f.elevator.onRun = func(string, []string) types.MutationOutcome {
		require.NoError(t, os.Remove(f.paths.LocaleGen))
		return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
	}

	out, err := f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{Lang: "C.UTF-8"})
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.False(t, events[1].success)
	refresh := events[1].data.(types.MutationOutcome)
	assert.Contains(t, refresh.Message, "Failed to refresh locale status")
}

func TestGenerateLocaleIsIdempotent(t *testing.T) {
	f := newFixture(t, "# header\n#en_US UTF-8\n")
	ctx := context.Background()

	out, err := f.r.GenerateLocale(ctx, "en_US.UTF-8")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "Locale en_US.UTF-8 generated.", out.Message)

	content, err := os.ReadFile(f.paths.LocaleGen)
	require.NoError(t, err)
	assert.Equal(t, "# header\nen_US UTF-8\n", string(content))
	assert.Equal(t, 1, f.store.writes)

	out, err = f.r.GenerateLocale(ctx, "en_US")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	again, err := os.ReadFile(f.paths.LocaleGen)
	require.NoError(t, err)
	assert.Equal(t, string(content), string(again))
	assert.Equal(t, 1, f.store.writes)

	// Generation runs both times
	assert.Equal(t, []string{"locale-gen", "locale-gen"}, f.elevator.names())
	for _, c := range f.elevator.calls {
		assert.Empty(t, c.args)
	}
}

func TestGenerateLocaleNotFound(t *testing.T) {
	f := newFixture(t, "#de_DE UTF-8\n")

	_, err := f.r.GenerateLocale(context.Background(), "en_US")

	assert.True(t, errors.Is(err, ErrLocaleNotFound))
	assert.Empty(t, f.elevator.calls)
	assert.Zero(t, f.store.writes)
	assert.Empty(t, f.publisher.all())
}

func TestGenerateLocaleMalformed(t *testing.T) {
	f := newFixture(t, "en_US.UTF-8\n")

	_, err := f.r.GenerateLocale(context.Background(), "en_US")

	assert.True(t, errors.Is(err, ErrManifestMalformed))
	assert.Contains(t, err.Error(), "line 1")
	assert.Empty(t, f.elevator.calls)
}

func TestGenerateLocaleInvalidID(t *testing.T) {
	f := newFixture(t, "#en_US UTF-8\n")

	_, err := f.r.GenerateLocale(context.Background(), "en_US\n#")

	assert.True(t, errors.Is(err, ErrInvalidLocale))
	assert.Zero(t, f.store.writes)
}

func TestGenerateLocaleWriteFailureIsAnOutcome(t *testing.T) {
	f := newFixture(t, "#en_US UTF-8\n")
	denied := types.MutationOutcome{Kind: types.KindAuthDenied, ExitCode: 127, Message: "denied"}
	f.r.store = NewElevatedStore(f.paths.LocaleGen, &fakeElevator{
		onRun: func(string, []string) types.MutationOutcome { return denied },
	}).WithTempDir(t.TempDir())

	out, err := f.r.GenerateLocale(context.Background(), "en_US")
	require.NoError(t, err)

	assert.Equal(t, denied, out)
	assert.Empty(t, f.elevator.calls, "generation must not run after a failed manifest write")

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.False(t, events[0].success)
}

func TestGenerateLocaleGenerationFailure(t *testing.T) {
	f := newFixture(t, "en_US UTF-8\n")
	failed := types.MutationOutcome{Kind: types.KindExitFailure, ExitCode: 1, Message: "Elevated command failed (Exit Code: 1). Output: boom"}
	f.elevator.onRun = func(string, []string) types.MutationOutcome { return failed }

	out, err := f.r.GenerateLocale(context.Background(), "en_US")
	require.NoError(t, err)

	assert.Equal(t, failed, out)
	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.Equal(t, failed, events[0].data)
}

func TestMutationsAreSerialized(t *testing.T) {
	f := newFixture(t, "en_US UTF-8\n")

	var mu sync.Mutex
	active, maxActive := 0, 0
	f.elevator.onRun = func(string, []string) types.MutationOutcome {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.r.ApplyLocale(context.Background(), types.LocaleConfiguration{Lang: "en_US.UTF-8"})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.r.GenerateLocale(context.Background(), "en_US")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Len(t, f.elevator.calls, 8)
}

func TestMutationWaitHonoursContext(t *testing.T) {
	f := newFixture(t, "en_US UTF-8\n")
	release := make(chan struct{})
	started := make(chan struct{})
	f.elevator.onRun = func(string, []string) types.MutationOutcome {
		close(started)
		<-release
		return types.MutationOutcome{Succeeded: true, Kind: types.KindNone}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.r.GenerateLocale(context.Background(), "en_US")
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.r.ApplyLocale(ctx, types.LocaleConfiguration{Lang: "C.UTF-8"})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(release)
	<-done
}
