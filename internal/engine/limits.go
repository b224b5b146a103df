package engine

import "time"

// Hard limits for a single run. MaxIterations bounds the thinking loop;
// the duplicate-read cap and the iteration thresholds below are the safety
// valves that force a move to execution before the budget is spent.
const (
	DefaultMaxIterations = 25

	// DuplicateReadLimit forces execution once the same file has been
	// requested in this many distinct proposed batches.
	DuplicateReadLimit = 3

	// WarnIterationRatio injects the "move to implementation" warning
	// into the context once iterationCount/max reaches this fraction.
	WarnIterationRatio = 0.6

	// ForceIterationRatio unconditionally ends the thinking phase.
	ForceIterationRatio = 0.8
)

// Timeouts. CompletionTimeout bounds a single provider call;
// ProcessingTimeout races the entire thinking phase of one run.
const (
	DefaultCompletionTimeout = 2 * time.Minute
	DefaultProcessingTimeout = 10 * time.Minute
	SummaryTimeout           = 30 * time.Second
)

// Output caps forwarded to the provider.
const (
	DefaultMaxOutputTokens = 8192
	SummaryMaxTokens       = 256
)

// RecentHistoryLimit caps how many prior chat messages are folded into the
// context document for conversational grounding.
const RecentHistoryLimit = 20

// Config holds the tunable knobs of a Controller.
type Config struct {
	ProjectID         string
	Model             string
	MaxIterations     int
	CompletionTimeout time.Duration
	ProcessingTimeout time.Duration
	MaxOutputTokens   int
	ContextBudget     int // token budget for the initial context build
	RetryPolicy       *RetryPolicy
}

// DefaultConfig returns a Config with the standard limits applied.
func DefaultConfig(projectID string) Config {
	policy := DefaultRetryPolicy()
	return Config{
		ProjectID:         projectID,
		MaxIterations:     DefaultMaxIterations,
		CompletionTimeout: DefaultCompletionTimeout,
		ProcessingTimeout: DefaultProcessingTimeout,
		MaxOutputTokens:   DefaultMaxOutputTokens,
		ContextBudget:     48000,
		RetryPolicy:       &policy,
	}
}

// warnThreshold returns the iteration count at which the tracking warning
// is injected.
func (c Config) warnThreshold() int {
	return int(float64(c.MaxIterations) * WarnIterationRatio)
}

// forceThreshold returns the iteration count at which execution is forced.
func (c Config) forceThreshold() int {
	return int(float64(c.MaxIterations) * ForceIterationRatio)
}
