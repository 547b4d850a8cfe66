// Package privileged runs commands with administrative rights through an
// interactive privilege broker such as pkexec.
//
// The broker owns the whole authorization exchange. The executor only spawns
// it, waits, and turns the result into a types.MutationOutcome. Failures are
// values, never errors: a caller always gets a message it can show.
package privileged

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// DefaultBroker is the broker used when none is configured.
const DefaultBroker = "/usr/bin/pkexec"

// Executor spawns commands under the privilege broker.
type Executor struct {
	broker     string
	runner     process.Runner
	classifier *Classifier
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// New creates an executor for broker using runner to spawn processes.
func New(broker string, runner process.Runner) *Executor {
	if broker == "" {
		broker = DefaultBroker
	}
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Executor{
		broker:     broker,
		runner:     runner,
		classifier: DefaultClassifier(),
		logger:     zap.NewNop(),
	}
}

// WithClassifier replaces the failure classifier.
func (e *Executor) WithClassifier(c *Classifier) *Executor {
	if c != nil {
		e.classifier = c
	}
	return e
}

// WithTimeout bounds each run, prompt time included. Zero means no bound
// beyond the caller's context.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.timeout = d
	return e
}

// WithLogger sets the logger.
func (e *Executor) WithLogger(l *zap.Logger) *Executor {
	e.logger = logging.OrNop(l).With(zap.String("broker", e.broker))
	return e
}

// WithMetrics enables execution metrics.
func (e *Executor) WithMetrics(m *monitoring.Metrics) *Executor {
	e.metrics = m
	return e
}

// Broker returns the broker binary.
func (e *Executor) Broker() string {
	return e.broker
}

// Run executes name with args as the superuser.
func (e *Executor) Run(ctx context.Context, name string, args ...string) types.MutationOutcome {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	argv := append([]string{name}, args...)
	command := strings.Join(argv, " ")
	e.logger.Info("Running elevated command", zap.String("command", command))

	start := time.Now()
	res, err := e.runner.Run(ctx, e.broker, argv...)
	duration := time.Since(start)

	kind := e.classifier.Classify(res, err)
	outcome := e.outcome(kind, res, err)
	e.metrics.RecordElevated(string(kind), duration)

	fields := []zap.Field{
		zap.String("command", command),
		zap.String("kind", string(kind)),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Duration("duration", duration),
	}
	switch kind {
	case types.KindNone:
		e.logger.Info("Elevated command succeeded", fields...)
	case types.KindAuthDenied, types.KindAborted:
		e.logger.Warn("Elevated command not performed", fields...)
	default:
		e.logger.Error("Elevated command failed", append(fields, zap.String("output", outcome.Message))...)
	}

	return outcome
}

// RunLine executes an opaque shell command line as the superuser.
func (e *Executor) RunLine(ctx context.Context, commandLine string) types.MutationOutcome {
	return e.Run(ctx, "sh", "-c", commandLine)
}

func (e *Executor) outcome(kind types.FailureKind, res process.Result, err error) types.MutationOutcome {
	out := types.MutationOutcome{
		Succeeded: kind == types.KindNone,
		Kind:      kind,
		ExitCode:  res.ExitCode,
	}

	switch kind {
	case types.KindNone:
		out.Message = combine(res)
	case types.KindAuthDenied:
		out.Message = fmt.Sprintf("Root permission denied or cancelled by user. (Exit Code: %d)", res.ExitCode)
	case types.KindExitFailure:
		out.Message = fmt.Sprintf("Elevated command failed (Exit Code: %d). Output: %s", res.ExitCode, combine(res))
	case types.KindSpawnFailure:
		cause := err
		var spawnErr *process.SpawnError
		if errors.As(err, &spawnErr) {
			cause = spawnErr.Err
		}
		out.ExitCode = -1
		out.Message = fmt.Sprintf("Failed to spawn %s process: %v", filepath.Base(e.broker), cause)
	case types.KindAborted:
		out.Message = fmt.Sprintf("Elevated command did not complete: %v", err)
	}
	return out
}

// combine joins stdout and stderr the way the broker's caller sees them.
func combine(res process.Result) string {
	return strings.TrimSpace(res.Stdout + "\n" + res.Stderr)
}
