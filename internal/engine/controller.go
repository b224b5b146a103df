// Package engine provides agent orchestration functionality.
// This file contains the iteration loop that alternates between gathering
// project context and applying a final batch of file actions.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// sharedLocks serializes runs per project across all controllers in the
// process.
var sharedLocks = newRunLocks()

// errRunAbandoned is the cancellation cause set when the processing
// timeout fires. Run has already reported the failure by then; the
// abandoned goroutine must not report a second one.
var errRunAbandoned = errors.New("run abandoned after processing timeout")

// Controller drives one modification request to completion: it consults
// the completion service iteration by iteration, executes reads while the
// model is still thinking, and applies the final action batch once it
// stops. One run owns its state exclusively; per-project serialization is
// enforced by a run lock.
type Controller struct {
	llm     CompletionClient
	exec    *Executor
	store   Recorder
	src     ProjectSource
	asm     *Assembler
	counter *Counter
	hooks   Hooks
	cfg     Config
	prompt  string
}

// NewController assembles a controller from its collaborators.
func NewController(llm CompletionClient, caps CapabilityMap, store Recorder, src ProjectSource, systemPrompt string, hooks Hooks, cfg Config) *Controller {
	counter := NewCounter(cfg.Model)
	return &Controller{
		llm:     llm,
		exec:    NewExecutor(caps, store, counter, hooks, cfg.ProjectID),
		store:   store,
		src:     src,
		asm:     NewAssembler(counter),
		counter: counter,
		hooks:   hooks,
		cfg:     cfg,
		prompt:  systemPrompt,
	}
}

// Run processes one natural-language modification request. It always
// returns a RunResult; every terminal failure also persists exactly one
// user-facing progress message so the observer is never left without an
// explanation.
//
// Cancelling ctx lets the in-flight completion call settle but refuses to
// apply further actions.
func (c *Controller) Run(ctx context.Context, request string) RunResult {
	if !sharedLocks.acquire(c.cfg.ProjectID) {
		return c.fail(ctx, NewRunError(ErrorProcessing, ErrRunInProgress, ""))
	}
	defer sharedLocks.release(c.cfg.ProjectID)

	// The whole thinking phase races against one outer deadline. The
	// completion call is not forcibly killed at the transport level; the
	// logical run is abandoned and reported as a timeout.
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	resultCh := make(chan RunResult, 1)
	go func() {
		resultCh <- c.run(runCtx, request)
	}()

	select {
	case res := <-resultCh:
		return res
	case <-time.After(c.cfg.ProcessingTimeout):
		cancel(errRunAbandoned)
		return c.fail(ctx, NewRunError(ErrorTimeout,
			fmt.Errorf("run exceeded processing timeout of %s", c.cfg.ProcessingTimeout), ""))
	}
}

func (c *Controller) run(ctx context.Context, request string) RunResult {
	doc, initialTokens, err := c.asm.BuildInitial(ctx, c.src, request, c.cfg.ContextBudget)
	if err != nil {
		return c.fail(ctx, err)
	}

	contextTokens, err := c.store.LatestContextTokens(ctx, c.cfg.ProjectID)
	if err != nil {
		log.Printf("failed to read latest context tokens: %v", err)
		contextTokens = 0
	}
	st := NewRunState(doc, contextTokens+initialTokens)
	st.Totals.Prompt += initialTokens

	if history, err := c.store.RecentMessages(ctx, c.cfg.ProjectID, RecentHistoryLimit); err != nil {
		log.Printf("failed to load chat history: %v", err)
	} else {
		c.asm.WithHistory(doc, history)
	}

	if _, err := c.store.AppendMessage(ctx, c.cfg.ProjectID, MessageRecord{
		Role:          RoleUser,
		Content:       request,
		TokensInput:   c.counter.Count(request),
		ContextTokens: st.ContextTokens,
	}); err != nil {
		log.Printf("failed to persist request message: %v", err)
	}

	resp, err := c.think(ctx, st)
	if err != nil {
		return c.fail(ctx, err)
	}

	return c.execute(ctx, st, resp.Actions)
}

// think loops until the model stops thinking, a safety valve forces
// execution, or the iteration budget is exhausted.
func (c *Controller) think(ctx context.Context, st *RunState) (Response, error) {
	for st.Iteration < c.cfg.MaxIterations {
		if cerr := ctx.Err(); cerr != nil {
			return Response{}, NewRunError(ErrorProcessing,
				fmt.Errorf("run cancelled during iteration %d: %w", st.Iteration, cerr), "")
		}
		c.hooks.OnIterationStart(ctx, st.Iteration)
		c.asm.WithTracking(st.Doc, st.ReadFiles, st.Iteration, c.cfg)

		resp, err := c.consult(ctx, st)
		if err != nil {
			// Per-iteration failures are recovered locally: the error is
			// made visible to the model and the loop continues, unless
			// the budget is already spent or the run itself was cancelled.
			if ctx.Err() != nil || st.Iteration >= c.cfg.MaxIterations-1 {
				return Response{}, err
			}
			c.asm.WithIterationError(st.Doc, st.Iteration, err)
			st.Iteration++
			continue
		}

		if !resp.Thinking {
			return resp, nil
		}

		if st.NoteRepeatReads(resp.Actions) {
			return c.forceExecution(ctx, st, "duplicate read requests")
		}
		if st.Iteration >= c.cfg.forceThreshold() {
			return c.forceExecution(ctx, st, "iteration budget nearly exhausted")
		}

		for _, a := range resp.Actions {
			if a.Kind != KindReadFile {
				continue
			}
			if st.ReadFiles[a.TargetPath] {
				continue
			}
			if err := c.exec.ExecuteOne(ctx, st, a); err != nil {
				st.Gathered[a.TargetPath] = fmt.Sprintf("ERROR: %v", err)
				st.ReadFiles[a.TargetPath] = true
			}
		}
		c.asm.WithGathered(st.Doc, st.Gathered, st.ExecutionLog)

		st.Iteration++
	}

	return Response{}, NewRunError(ErrorProcessing,
		fmt.Errorf("iteration limit (%d) reached without a final action batch", c.cfg.MaxIterations), "")
}

// forceExecution injects the terminal notice, issues exactly one more
// completion call and overrides the thinking flag regardless of what the
// model returned. A forced call that still yields zero actions is a
// processing failure; the run cannot silently end with no effect.
func (c *Controller) forceExecution(ctx context.Context, st *RunState, reason string) (Response, error) {
	c.hooks.OnForcedExecution(ctx, reason)
	c.asm.WithForcedExecution(st.Doc)

	resp, err := c.consult(ctx, st)
	if err != nil {
		return Response{}, err
	}
	resp.Thinking = false
	if len(resp.Actions) == 0 {
		return Response{}, NewRunError(ErrorProcessing,
			errors.New("model produced no actions after forced execution"), reason)
	}
	return resp, nil
}

// consult renders the context document, calls the completion service with
// the per-call timeout and retry policy, and parses the reply.
func (c *Controller) consult(ctx context.Context, st *RunState) (Response, error) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: c.prompt},
		{Role: RoleUser, Content: st.Doc.Render()},
	}
	st.Totals.Prompt += c.counter.CountMessages(msgs)

	policy := DefaultRetryPolicy()
	if c.cfg.RetryPolicy != nil {
		policy = *c.cfg.RetryPolicy
	}

	completion, err := retryCompletion(ctx, policy, func(ctx context.Context) (Completion, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CompletionTimeout)
		defer cancel()
		return c.llm.Complete(callCtx, msgs, CompletionOptions{
			Timeout:   c.cfg.CompletionTimeout,
			MaxTokens: c.cfg.MaxOutputTokens,
		})
	}, func(attempt int, delay time.Duration, err error) {
		c.hooks.OnRetryAttempt(ctx, attempt, policy.MaxRetries, delay, err)
	})
	if err != nil {
		return Response{}, err
	}

	st.Totals.Completion += c.counter.Count(completion.Text)
	st.Totals.Total = st.Totals.Prompt + st.Totals.Completion

	resp, err := ParseResponse(completion.Text)
	if err != nil {
		return Response{}, err
	}
	c.hooks.OnResponse(ctx, st.Iteration, resp, completion.Usage)
	return resp, nil
}

// execute applies the final batch and publishes the closing summary.
func (c *Controller) execute(ctx context.Context, st *RunState, actions []Action) RunResult {
	if len(actions) == 0 {
		return c.fail(ctx, NewRunError(ErrorProcessing,
			errors.New("model returned no usable actions"), ""))
	}

	// User-initiated cancellation refuses to start applying actions; a
	// half-applied batch is worse than a stale one.
	if err := ctx.Err(); err != nil {
		return c.fail(ctx, NewRunError(ErrorProcessing,
			fmt.Errorf("run cancelled before actions were applied: %w", err), ""))
	}

	executed, execErr := c.exec.ExecuteBatch(ctx, st, actions)
	if execErr != nil {
		res := c.fail(ctx, execErr)
		res.Executed = executed
		return res
	}

	summary := RequestSummary(ctx, c.llm, executed)
	if _, err := c.store.AppendMessage(ctx, c.cfg.ProjectID, MessageRecord{
		Role:          RoleAssistant,
		Content:       summary,
		TokensInput:   st.Totals.Prompt,
		TokensOutput:  st.Totals.Completion + c.counter.Count(summary),
		ContextTokens: st.ContextTokens,
	}); err != nil {
		log.Printf("failed to persist summary message: %v", err)
	}

	result := RunResult{Success: true, Executed: executed, Summary: summary}
	c.hooks.OnDone(ctx, result)
	return result
}

// fail classifies err, persists the single user-facing failure message and
// returns the terminal result.
func (c *Controller) fail(ctx context.Context, err error) RunResult {
	typ := Classify(err)
	details := err.Error()
	var runErr *RunError
	if errors.As(err, &runErr) && runErr.Details != "" {
		details = runErr.Details
	}

	msg := UserMessage(typ)

	// The processing-timeout branch in Run reports first and cancels the
	// run context with errRunAbandoned; the abandoned goroutine unwinds
	// through here and must stay silent.
	if errors.Is(context.Cause(ctx), errRunAbandoned) {
		return RunResult{Success: false, Error: msg, ErrorType: typ, ErrorDetails: details}
	}

	if _, perr := c.store.AppendMessage(context.WithoutCancel(ctx), c.cfg.ProjectID, MessageRecord{
		Role:         RoleAssistant,
		Content:      msg,
		TokensOutput: c.counter.Count(msg),
		Metadata:     map[string]string{"errorType": string(typ)},
	}); perr != nil {
		log.Printf("failed to persist failure message: %v", perr)
	}

	result := RunResult{
		Success:      false,
		Error:        msg,
		ErrorType:    typ,
		ErrorDetails: details,
	}
	c.hooks.OnDone(ctx, result)
	return result
}
