package engine

import (
	"context"
	"time"
)

// Hook receives fine-grained progress callbacks from a run. The persistence
// collaborator and any live UI are independent consumers of the same
// stream.
type Hook interface {
	OnIterationStart(ctx context.Context, iteration int)
	OnResponse(ctx context.Context, iteration int, resp Response, usage Usage)
	OnActionStart(ctx context.Context, action Action)
	OnActionDone(ctx context.Context, action Action, err error)
	OnForcedExecution(ctx context.Context, reason string)
	OnRetryAttempt(ctx context.Context, attempt, maxAttempts int, delay time.Duration, err error)
	OnDone(ctx context.Context, result RunResult)
}

// NopHook lets you implement only the hooks you need.
type NopHook struct{}

func (NopHook) OnIterationStart(context.Context, int)                          {}
func (NopHook) OnResponse(context.Context, int, Response, Usage)               {}
func (NopHook) OnActionStart(context.Context, Action)                          {}
func (NopHook) OnActionDone(context.Context, Action, error)                    {}
func (NopHook) OnForcedExecution(context.Context, string)                      {}
func (NopHook) OnRetryAttempt(context.Context, int, int, time.Duration, error) {}
func (NopHook) OnDone(context.Context, RunResult)                              {}

// Hooks fans callbacks out to every registered hook.
type Hooks []Hook

func (hs Hooks) OnIterationStart(ctx context.Context, iteration int) {
	for _, h := range hs {
		h.OnIterationStart(ctx, iteration)
	}
}

func (hs Hooks) OnResponse(ctx context.Context, iteration int, resp Response, usage Usage) {
	for _, h := range hs {
		h.OnResponse(ctx, iteration, resp, usage)
	}
}

func (hs Hooks) OnActionStart(ctx context.Context, action Action) {
	for _, h := range hs {
		h.OnActionStart(ctx, action)
	}
}

func (hs Hooks) OnActionDone(ctx context.Context, action Action, err error) {
	for _, h := range hs {
		h.OnActionDone(ctx, action, err)
	}
}

func (hs Hooks) OnForcedExecution(ctx context.Context, reason string) {
	for _, h := range hs {
		h.OnForcedExecution(ctx, reason)
	}
}

func (hs Hooks) OnRetryAttempt(ctx context.Context, attempt, maxAttempts int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, attempt, maxAttempts, delay, err)
	}
}

func (hs Hooks) OnDone(ctx context.Context, result RunResult) {
	for _, h := range hs {
		h.OnDone(ctx, result)
	}
}
