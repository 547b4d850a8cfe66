// Package locale applies and generates system locales and keeps observers
// informed of the resulting host state.
//
// Every mutation follows the same shape: validate, take the locale lock,
// run the privileged step, publish the outcome, re-probe the host and
// publish the fresh status. Observers therefore always see the real state
// after a mutation, whether it succeeded or not.
package locale

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// ErrNoCategories is returned when an apply request sets nothing.
var ErrNoCategories = errors.New("no locale values supplied")

const refreshTimeout = 30 * time.Second

// Elevator runs a command with administrative rights.
type Elevator interface {
	Run(ctx context.Context, name string, args ...string) types.MutationOutcome
}

// Prober reads the locale-related host state.
type Prober interface {
	LocaleConf() (types.LocaleConfiguration, error)
	AvailableLocales() ([]string, error)
	GeneratedLocales(ctx context.Context) ([]string, error)
	RebootRequired() (bool, error)
}

// Commands names the utilities the reconciler invokes through the broker.
type Commands struct {
	Localectl string
	LocaleGen string
}

// Reconciler owns the locale resource class.
type Reconciler struct {
	prober    Prober
	elevator  Elevator
	store     ManifestStore
	publisher broadcast.Publisher
	commands  Commands

	// one locale mutation at a time; waiting honours the caller's context
	lock *semaphore.Weighted

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewReconciler wires a reconciler.
func NewReconciler(prober Prober, elevator Elevator, store ManifestStore, publisher broadcast.Publisher, commands Commands) *Reconciler {
	if commands.Localectl == "" {
		commands.Localectl = "localectl"
	}
	if commands.LocaleGen == "" {
		commands.LocaleGen = "locale-gen"
	}
	return &Reconciler{
		prober:    prober,
		elevator:  elevator,
		store:     store,
		publisher: publisher,
		commands:  commands,
		lock:      semaphore.NewWeighted(1),
		logger:    zap.NewNop(),
	}
}

// WithLogger sets the logger.
func (r *Reconciler) WithLogger(l *zap.Logger) *Reconciler {
	r.logger = logging.OrNop(l).Named("locale")
	return r
}

// WithMetrics enables probe metrics.
func (r *Reconciler) WithMetrics(m *monitoring.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Snapshot probes the host without publishing. The four sources are read
// concurrently and all must succeed.
func (r *Reconciler) Snapshot(ctx context.Context) (types.LocaleStatus, error) {
	start := time.Now()
	var status types.LocaleStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := r.prober.LocaleConf()
		if err != nil {
			r.metrics.RecordProbeFailure("locale_conf")
			return err
		}
		status.Current = cfg
		return nil
	})
	g.Go(func() error {
		available, err := r.prober.AvailableLocales()
		if err != nil {
			r.metrics.RecordProbeFailure("locale_manifest")
			return err
		}
		status.AvailableLocales = available
		return nil
	})
	g.Go(func() error {
		generated, err := r.prober.GeneratedLocales(gctx)
		if err != nil {
			r.metrics.RecordProbeFailure("generated_locales")
			return err
		}
		status.GeneratedLocales = generated
		return nil
	})
	g.Go(func() error {
		reboot, err := r.prober.RebootRequired()
		if err != nil {
			r.metrics.RecordProbeFailure("reboot_sentinel")
			return err
		}
		status.RebootRequired = reboot
		return nil
	})

	if err := g.Wait(); err != nil {
		return types.LocaleStatus{}, err
	}
	r.metrics.RecordSnapshot("locale", time.Since(start))
	return status, nil
}

// Status probes the host and publishes the snapshot.
func (r *Reconciler) Status(ctx context.Context) (types.LocaleStatus, error) {
	status, err := r.Snapshot(ctx)
	if err != nil {
		r.logger.Warn("Locale status probe failed", zap.Error(err))
		return types.LocaleStatus{}, err
	}
	r.publisher.Publish(broadcast.ChannelLocale, true, status)
	return status, nil
}

// ApplyLocale persists the non-empty categories of cfg through localectl.
// A request without categories, or with a value that is not a locale name,
// is rejected before anything runs.
func (r *Reconciler) ApplyLocale(ctx context.Context, cfg types.LocaleConfiguration) (types.MutationOutcome, error) {
	categories := cfg.Categories()
	if len(categories) == 0 {
		return types.MutationOutcome{}, ErrNoCategories
	}

	args := make([]string, 0, len(categories)+1)
	args = append(args, "set-locale")
	for _, c := range categories {
		if !validValue(c.Value) {
			return types.MutationOutcome{}, fmt.Errorf("%w: %s=%q", ErrInvalidLocale, c.Key, c.Value)
		}
		args = append(args, c.Key+"="+c.Value)
	}

	if err := r.lock.Acquire(ctx, 1); err != nil {
		return types.MutationOutcome{}, fmt.Errorf("wait for locale lock: %w", err)
	}
	defer r.lock.Release(1)

	out := r.elevator.Run(ctx, r.commands.Localectl, args...)
	if out.Succeeded {
		out.Message = "Locale applied. A reboot may be required."
	}
	r.logger.Info("Locale apply finished",
		zap.Strings("categories", args[1:]),
		zap.Bool("success", out.Succeeded),
		zap.String("kind", string(out.Kind)),
	)

	r.settle(ctx, out)
	return out, nil
}

// GenerateLocale enables id in the manifest if needed and regenerates the
// compiled locales. Generation runs even when the entry was already
// enabled, so repeating a request is harmless.
func (r *Reconciler) GenerateLocale(ctx context.Context, id string) (types.MutationOutcome, error) {
	name, err := NormalizeLocale(id)
	if err != nil {
		return types.MutationOutcome{}, err
	}

	if err := r.lock.Acquire(ctx, 1); err != nil {
		return types.MutationOutcome{}, fmt.Errorf("wait for locale lock: %w", err)
	}
	defer r.lock.Release(1)

	content, err := r.store.Read()
	if err != nil {
		return types.MutationOutcome{}, err
	}

	edit := PlanManifestEdit(content, name)
	r.logger.Info("Planned manifest edit",
		zap.String("locale", name),
		zap.String("decision", edit.Decision.String()),
		zap.Int("line", edit.Line),
		zap.String("path", r.store.Path()),
	)

	switch edit.Decision {
	case DecisionNotFound:
		return types.MutationOutcome{}, fmt.Errorf("%w: %s in %s", ErrLocaleNotFound, name, r.store.Path())
	case DecisionMalformed:
		return types.MutationOutcome{}, fmt.Errorf("%w: %s line %d: %q",
			ErrManifestMalformed, r.store.Path(), edit.Line, strings.TrimSpace(edit.Entry))
	case DecisionEnable:
		if err := r.store.Write(ctx, edit.Content); err != nil {
			out := writeFailure(err)
			r.settle(ctx, out)
			return out, nil
		}
	}

	out := r.elevator.Run(ctx, r.commands.LocaleGen)
	if out.Succeeded {
		out.Message = fmt.Sprintf("Locale %s generated.", strings.TrimSpace(id))
	}

	r.settle(ctx, out)
	return out, nil
}

// settle publishes a mutation outcome followed by the re-probed status.
// The re-probe outlives a cancelled caller so observers are never left
// with stale state.
func (r *Reconciler) settle(ctx context.Context, out types.MutationOutcome) {
	r.publisher.Publish(broadcast.ChannelLocale, out.Succeeded, out)

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	status, err := r.Snapshot(refreshCtx)
	if err != nil {
		r.logger.Warn("Locale status refresh failed", zap.Error(err))
		r.publisher.Publish(broadcast.ChannelLocale, false, types.MutationOutcome{
			Kind:     types.KindExitFailure,
			ExitCode: -1,
			Message:  fmt.Sprintf("Failed to refresh locale status: %v", err),
		})
		return
	}
	r.publisher.Publish(broadcast.ChannelLocale, true, status)
}

func writeFailure(err error) types.MutationOutcome {
	var oe *OutcomeError
	if errors.As(err, &oe) {
		return oe.Outcome
	}
	return types.MutationOutcome{
		Kind:     types.KindExitFailure,
		ExitCode: -1,
		Message:  fmt.Sprintf("Failed to update locale manifest: %v", err),
	}
}

// validValue accepts locale names such as en_US.UTF-8, sr_RS@latin or C.
func validValue(v string) bool {
	for _, r := range v {
		if !validLocaleRune(r) {
			return false
		}
	}
	return v != ""
}
