package engine

import (
	"context"
	"log"
	"time"
)

// Event is one progress notification published during a run.
type Event struct {
	Kind string // "iteration_start", "response", "action_start", "action_done", "forced", "retry_attempt", "done"
	Data any
}

// ChannelHook bridges run progress onto a channel for a live consumer.
type ChannelHook struct{ Ch chan<- Event }

func (h ChannelHook) OnIterationStart(_ context.Context, iteration int) {
	h.Ch <- Event{Kind: "iteration_start", Data: iteration}
}
func (h ChannelHook) OnResponse(_ context.Context, iteration int, resp Response, usage Usage) {
	h.Ch <- Event{Kind: "response", Data: map[string]any{
		"iteration": iteration,
		"thinking":  resp.Thinking,
		"actions":   len(resp.Actions),
		"tokens":    usage.Total,
	}}
}
func (h ChannelHook) OnActionStart(_ context.Context, action Action) {
	h.Ch <- Event{Kind: "action_start", Data: map[string]string{
		"kind": string(action.Kind),
		"path": action.TargetPath,
	}}
}
func (h ChannelHook) OnActionDone(_ context.Context, action Action, err error) {
	data := map[string]string{"kind": string(action.Kind), "path": action.TargetPath}
	if err != nil {
		data["error"] = err.Error()
	}
	h.Ch <- Event{Kind: "action_done", Data: data}
}
func (h ChannelHook) OnForcedExecution(_ context.Context, reason string) {
	h.Ch <- Event{Kind: "forced", Data: reason}
}
func (h ChannelHook) OnRetryAttempt(_ context.Context, attempt, maxAttempts int, delay time.Duration, err error) {
	h.Ch <- Event{Kind: "retry_attempt", Data: map[string]any{
		"attempt":     attempt,
		"maxAttempts": maxAttempts,
		"delay":       delay,
		"error":       err.Error(),
	}}
}
func (h ChannelHook) OnDone(_ context.Context, result RunResult) {
	h.Ch <- Event{Kind: "done", Data: result.Success}
}

// LoggerHook writes run progress to a standard logger.
type LoggerHook struct{ L *log.Logger }

func (h LoggerHook) OnIterationStart(_ context.Context, iteration int) {
	h.L.Printf("iteration=%d thinking", iteration)
}
func (h LoggerHook) OnResponse(_ context.Context, iteration int, resp Response, usage Usage) {
	h.L.Printf("iteration=%d thinking=%t actions=%d tokens: prompt=%d completion=%d total=%d",
		iteration, resp.Thinking, len(resp.Actions), usage.Prompt, usage.Completion, usage.Total)
}
func (h LoggerHook) OnActionStart(_ context.Context, action Action) {
	h.L.Printf("action start: %s %s", action.Kind, action.TargetPath)
}
func (h LoggerHook) OnActionDone(_ context.Context, action Action, err error) {
	if err != nil {
		h.L.Printf("action failed: %s %s: %v", action.Kind, action.TargetPath, err)
		return
	}
	h.L.Printf("action done: %s %s", action.Kind, action.TargetPath)
}
func (h LoggerHook) OnForcedExecution(_ context.Context, reason string) {
	h.L.Printf("forcing execution: %s", reason)
}
func (h LoggerHook) OnRetryAttempt(_ context.Context, attempt, maxAttempts int, delay time.Duration, err error) {
	h.L.Printf("retry %d/%d in %s: %v", attempt, maxAttempts, delay, err)
}
func (h LoggerHook) OnDone(_ context.Context, result RunResult) {
	h.L.Printf("run done success=%t executed=%d", result.Success, len(result.Executed))
}
