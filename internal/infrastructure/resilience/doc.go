/*
Package resilience guards calls to unreliable host tools.

A Breaker stops calling a tool that keeps failing and lets a single trial
call through after a cool-down. While open, callers get ErrCircuitOpen
immediately instead of waiting on a broken tool.

# States

  - Closed: calls pass through; consecutive failures are counted.
  - Open: FailureThreshold consecutive failures were seen; calls fail with
    ErrCircuitOpen until OpenTimeout has elapsed.
  - Half-Open: one trial call is let through. Success closes the breaker,
    failure reopens it. Concurrent callers get ErrTooManyRequests.

Errors matched by Settings.IsExcluded (IsCancellation by default) are not
counted either way, so a caller that gives up cannot open the breaker.

# Usage

	breaker := resilience.New("package-search", resilience.Settings{
		FailureThreshold: cfg.Catalog.BreakerFailures,
		OpenTimeout:      cfg.Catalog.BreakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	kernels, err := resilience.Do(breaker, func() ([]types.InstallableKernel, error) {
		return searcher.Search(ctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// skip the catalog until the cool-down ends
	}

Call is the variant for functions that return only an error.
*/
package resilience
