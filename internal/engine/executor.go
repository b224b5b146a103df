// Package engine provides agent orchestration functionality.
// This file dispatches validated actions to their capabilities.

package engine

import (
	"context"
	"fmt"
	"log"
	"time"
)

// recordType maps an action kind onto the persisted record type.
func recordType(k ActionKind) string { return string(k) }

// Executor applies validated actions through the capability map and keeps
// the persisted progress records in step with reality. A record announced
// pending is always transitioned to completed or error before ExecuteOne
// returns.
type Executor struct {
	caps      CapabilityMap
	store     Recorder
	counter   *Counter
	hooks     Hooks
	projectID string
}

// NewExecutor wires an executor to its capabilities and collaborators.
func NewExecutor(caps CapabilityMap, store Recorder, counter *Counter, hooks Hooks, projectID string) *Executor {
	return &Executor{caps: caps, store: store, counter: counter, hooks: hooks, projectID: projectID}
}

// ExecuteOne announces, dispatches and settles a single action. The
// returned error is nil on success. Persistence failures are logged and
// tolerated; capability failures settle the record as error and rewrite
// the progress message to explain what happened.
func (e *Executor) ExecuteOne(ctx context.Context, st *RunState, action Action) error {
	msgID := e.announce(ctx, st, action)
	e.hooks.OnActionStart(ctx, action)

	err := e.dispatch(ctx, st, action)
	if err != nil {
		e.settle(ctx, msgID, action, StatusError)
		if msgID != "" {
			explain := fmt.Sprintf("Failed to %s %s: %v", action.Kind, action.TargetPath, err)
			if uerr := e.store.UpdateMessageContent(ctx, msgID, explain); uerr != nil {
				log.Printf("failed to update progress message %s: %v", msgID, uerr)
			}
		}
		e.hooks.OnActionDone(ctx, action, err)
		return err
	}

	e.settle(ctx, msgID, action, StatusCompleted)
	e.hooks.OnActionDone(ctx, action, nil)
	return nil
}

// ExecuteBatch applies actions strictly in order and stops at the first
// failure; later edits may depend on earlier ones, so speculative
// continuation would leave the project in an unpredictable state. It
// returns the successfully executed prefix and the first failure, if any.
func (e *Executor) ExecuteBatch(ctx context.Context, st *RunState, actions []Action) ([]Action, error) {
	executed := make([]Action, 0, len(actions))
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return executed, fmt.Errorf("batch interrupted before %s %s: %w", a.Kind, a.TargetPath, err)
		}
		if err := e.ExecuteOne(ctx, st, a); err != nil {
			return executed, fmt.Errorf("%s %s: %w", a.Kind, a.TargetPath, err)
		}
		executed = append(executed, a)
	}
	return executed, nil
}

// announce persists the pending progress message and its action record.
// Returns the message id, or "" when persistence is unavailable.
func (e *Executor) announce(ctx context.Context, st *RunState, action Action) string {
	content := action.Message
	if content == "" {
		content = fmt.Sprintf("%s %s", action.Kind, action.TargetPath)
	}
	msgID, err := e.store.AppendMessage(ctx, e.projectID, MessageRecord{
		Role:          RoleAssistant,
		Content:       content,
		TokensOutput:  e.counter.Count(content),
		ContextTokens: st.ContextTokens,
	})
	if err != nil {
		log.Printf("failed to persist progress message for %s %s: %v", action.Kind, action.TargetPath, err)
		return ""
	}
	rec := ActionRecord{
		Type:      recordType(action.Kind),
		Path:      action.TargetPath,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
	if err := e.store.AppendActionRecord(ctx, msgID, rec); err != nil {
		log.Printf("failed to persist action record for %s: %v", action.TargetPath, err)
	}
	return msgID
}

// settle transitions the announced record out of pending.
func (e *Executor) settle(ctx context.Context, msgID string, action Action, status RecordStatus) {
	if msgID == "" {
		return
	}
	if err := e.store.UpdateActionStatus(ctx, msgID, action.TargetPath, recordType(action.Kind), status); err != nil {
		log.Printf("failed to update action record %s -> %s: %v", action.TargetPath, status, err)
	}
}

// dispatch routes one action to its capability and folds the result into
// run state. An unknown kind is a processing-class failure.
func (e *Executor) dispatch(ctx context.Context, st *RunState, action Action) error {
	cap, ok := e.caps[action.Kind]
	if !ok {
		return NewRunError(ErrorProcessing,
			fmt.Errorf("unknown action kind: %s", action.Kind), "")
	}

	if action.Kind.RequiresContent() && action.Content == "" {
		return fmt.Errorf("%s requires content for %s", action.Kind, action.TargetPath)
	}

	res, err := cap.Execute(ctx, action.TargetPath, action.Content)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s failed for %s", action.Kind, action.TargetPath)
	}

	switch action.Kind {
	case KindReadFile:
		tokens := e.counter.Count(res.Content)
		st.Gathered[action.TargetPath] = res.Content
		st.ReadFiles[action.TargetPath] = true
		st.ContextTokens += tokens
		st.Totals.Prompt += tokens
		st.ExecutionLog = append(st.ExecutionLog, fmt.Sprintf("Read %s (%d tokens)", action.TargetPath, tokens))
	case KindSearch:
		// Search reports success whenever the query runs; no matches is
		// not a failure at this layer.
		st.ExecutionLog = append(st.ExecutionLog, fmt.Sprintf("Searched for %q", action.TargetPath))
		if res.Content != "" {
			st.Gathered["search:"+action.TargetPath] = res.Content
		}
	default:
		st.ExecutionLog = append(st.ExecutionLog, fmt.Sprintf("%s %s", action.Kind, action.TargetPath))
	}

	return nil
}
