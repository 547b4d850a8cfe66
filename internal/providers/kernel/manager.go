package kernel

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/host/catalog"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// UnknownKernel is reported when the running kernel cannot be read.
const UnknownKernel = "<unknown>"

const refreshTimeout = 2 * time.Minute

// ErrInvalidPackage rejects names that are not kernel packages.
var ErrInvalidPackage = errors.New("invalid kernel package name")

var packageName = regexp.MustCompile(`^linux[a-z0-9@._+-]*$`)

// Prober reads kernel state from the host.
type Prober interface {
	RunningKernel() (string, error)
	InstalledKernels() ([]types.InstalledKernel, error)
}

// Searcher lists installable kernels.
type Searcher interface {
	Search(ctx context.Context) ([]types.InstallableKernel, error)
}

// Elevator runs a command with administrative rights.
type Elevator interface {
	Run(ctx context.Context, name string, args ...string) types.MutationOutcome
}

// Manager owns the package resource class: kernel snapshots and kernel
// package installs and removals.
type Manager struct {
	prober    Prober
	searcher  Searcher
	elevator  Elevator
	publisher broadcast.Publisher
	pacman    string

	breaker *resilience.Breaker
	lock    *semaphore.Weighted

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewManager wires a kernel manager. pacman names the package manager run
// through the broker.
func NewManager(prober Prober, searcher Searcher, elevator Elevator, publisher broadcast.Publisher, pacman string) *Manager {
	if pacman == "" {
		pacman = "pacman"
	}
	return &Manager{
		prober:    prober,
		searcher:  searcher,
		elevator:  elevator,
		publisher: publisher,
		pacman:    pacman,
		breaker:   resilience.New("package-search", resilience.Settings{}),
		lock:      semaphore.NewWeighted(1),
		logger:    zap.NewNop(),
	}
}

// WithBreaker replaces the breaker guarding the package search.
func (m *Manager) WithBreaker(b *resilience.Breaker) *Manager {
	m.breaker = b
	return m
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	m.logger = logging.OrNop(l).Named("kernel")
	return m
}

// WithMetrics enables probe metrics.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Snapshot gathers kernel state without publishing. The installed kernels
// are required; the running kernel and the repository search degrade to
// warnings so one broken source does not hide the others.
func (m *Manager) Snapshot(ctx context.Context) (types.KernelInfo, error) {
	start := time.Now()
	var (
		running     string
		runningErr  error
		installed   []types.InstalledKernel
		installable []types.InstallableKernel
		searchErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		running, runningErr = m.prober.RunningKernel()
		return nil
	})
	g.Go(func() error {
		var err error
		installed, err = m.prober.InstalledKernels()
		if err != nil {
			m.metrics.RecordProbeFailure("installed_kernels")
		}
		return err
	})
	g.Go(func() error {
		installable, searchErr = resilience.Do(m.breaker, func() ([]types.InstallableKernel, error) {
			return m.searcher.Search(gctx)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.KernelInfo{}, err
	}

	info := types.KernelInfo{
		RunningKernel:      running,
		InstalledKernels:   installed,
		InstallableKernels: installable,
	}
	if runningErr != nil {
		m.metrics.RecordProbeFailure("running_kernel")
		m.logger.Warn("Running kernel unavailable", zap.Error(runningErr))
		info.RunningKernel = UnknownKernel
		info.Warnings = append(info.Warnings, fmt.Sprintf("running kernel: %v", runningErr))
	}
	if searchErr != nil {
		m.metrics.RecordProbeFailure("package_search")
		m.logger.Warn("Package search unavailable", zap.Error(searchErr))
		info.InstallableKernels = []types.InstallableKernel{}
		info.Warnings = append(info.Warnings, fmt.Sprintf("package search: %v", searchErr))
	}

	m.metrics.RecordSnapshot("kernel", time.Since(start))
	return info, nil
}

// Info gathers kernel state and publishes it.
func (m *Manager) Info(ctx context.Context) (types.KernelInfo, error) {
	info, err := m.Snapshot(ctx)
	if err != nil {
		m.logger.Warn("Kernel info probe failed", zap.Error(err))
		return types.KernelInfo{}, err
	}
	m.publisher.Publish(broadcast.ChannelKernel, true, info)
	return info, nil
}

// Install installs a kernel package from the repositories.
func (m *Manager) Install(ctx context.Context, pkg string) (types.MutationOutcome, error) {
	return m.mutate(ctx, pkg, "installed", "-S", "--needed", "--noconfirm", pkg)
}

// Remove removes an installed kernel package.
func (m *Manager) Remove(ctx context.Context, pkg string) (types.MutationOutcome, error) {
	return m.mutate(ctx, pkg, "removed", "-R", "--noconfirm", pkg)
}

func (m *Manager) mutate(ctx context.Context, pkg, verb string, args ...string) (types.MutationOutcome, error) {
	if !packageName.MatchString(pkg) || !catalog.IsKernelPackage(pkg) {
		return types.MutationOutcome{}, fmt.Errorf("%w: %q", ErrInvalidPackage, pkg)
	}

	if err := m.lock.Acquire(ctx, 1); err != nil {
		return types.MutationOutcome{}, fmt.Errorf("wait for package lock: %w", err)
	}
	defer m.lock.Release(1)

	out := m.elevator.Run(ctx, m.pacman, args...)
	if out.Succeeded {
		out.Message = fmt.Sprintf("Kernel package %s %s. A reboot may be required.", pkg, verb)
	}
	m.logger.Info("Kernel package mutation finished",
		zap.String("package", pkg),
		zap.String("action", verb),
		zap.Bool("success", out.Succeeded),
		zap.String("kind", string(out.Kind)),
	)

	m.publisher.Publish(broadcast.ChannelKernel, out.Succeeded, out)
	m.refresh(ctx)
	return out, nil
}

// refresh re-probes after a mutation, even if the caller has gone away.
func (m *Manager) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	info, err := m.Snapshot(refreshCtx)
	if err != nil {
		m.logger.Warn("Kernel info refresh failed", zap.Error(err))
		m.publisher.Publish(broadcast.ChannelKernel, false, types.MutationOutcome{
			Kind:     types.KindExitFailure,
			ExitCode: -1,
			Message:  fmt.Sprintf("Failed to refresh kernel info: %v", err),
		})
		return
	}
	m.publisher.Publish(broadcast.ChannelKernel, true, info)
}
