package privileged

import (
	"errors"
	"strings"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/process"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// DenialPredicate reports whether a failed run means the broker refused to
// elevate (the user dismissed the prompt, the policy denied it, or the
// password was wrong).
type DenialPredicate func(exitCode int, stderr string) bool

// ExitCode matches a specific broker exit status.
func ExitCode(code int) DenialPredicate {
	return func(exitCode int, _ string) bool {
		return exitCode == code
	}
}

// StderrContains matches a fragment of the broker's diagnostic output,
// ignoring case.
func StderrContains(fragment string) DenialPredicate {
	fragment = strings.ToLower(fragment)
	return func(_ int, stderr string) bool {
		return strings.Contains(strings.ToLower(stderr), fragment)
	}
}

// Classifier maps a finished run onto the closed set of failure kinds.
type Classifier struct {
	denial []DenialPredicate
}

// NewClassifier creates a classifier that treats any matching predicate as
// an authorization denial.
func NewClassifier(denial ...DenialPredicate) *Classifier {
	return &Classifier{denial: denial}
}

// DefaultClassifier recognizes pkexec's documented refusal status and the
// usual polkit diagnostics.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		ExitCode(127),
		StderrContains("not authorized"),
		StderrContains("authentication failed"),
	)
}

// PolkitClassifier extends DefaultClassifier with status 126, which pkexec
// uses when the authentication dialog is dismissed.
func PolkitClassifier() *Classifier {
	c := DefaultClassifier()
	c.denial = append(c.denial, ExitCode(126))
	return c
}

// Classify decides the kind of a run. err is the runner error, if any.
func (c *Classifier) Classify(res process.Result, err error) types.FailureKind {
	if err != nil {
		if errors.Is(err, process.ErrAborted) {
			return types.KindAborted
		}
		return types.KindSpawnFailure
	}
	if res.ExitCode == 0 {
		return types.KindNone
	}
	for _, denied := range c.denial {
		if denied(res.ExitCode, res.Stderr) {
			return types.KindAuthDenied
		}
	}
	return types.KindExitFailure
}
