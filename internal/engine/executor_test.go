package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// memRecorder is an in-memory Recorder for tests.
type memRecorder struct {
	mu       sync.Mutex
	messages []MessageRecord
	records  map[string][]ActionRecord
	nextID   int
	failAll  bool
}

func newMemRecorder() *memRecorder {
	return &memRecorder{records: make(map[string][]ActionRecord)}
}

func (r *memRecorder) AppendMessage(_ context.Context, projectID string, m MessageRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return "", errors.New("store offline")
	}
	r.nextID++
	m.ID = fmt.Sprintf("msg-%d", r.nextID)
	r.messages = append(r.messages, m)
	return m.ID, nil
}

func (r *memRecorder) AppendActionRecord(_ context.Context, messageID string, rec ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("store offline")
	}
	r.records[messageID] = append(r.records[messageID], rec)
	return nil
}

func (r *memRecorder) UpdateActionStatus(_ context.Context, messageID, path, typ string, status RecordStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records[messageID] {
		if rec.Path == path && rec.Type == typ {
			r.records[messageID][i].Status = status
			return nil
		}
	}
	return fmt.Errorf("no record for %s", path)
}

func (r *memRecorder) UpdateMessageContent(_ context.Context, messageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == messageID {
			r.messages[i].Content = content
			return nil
		}
	}
	return fmt.Errorf("no message %s", messageID)
}

func (r *memRecorder) SumTokenTotals(_ context.Context, projectID string) (TokenTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t TokenTotals
	for _, m := range r.messages {
		t.Input += m.TokensInput
		t.Output += m.TokensOutput
	}
	return t, nil
}

func (r *memRecorder) LatestContextTokens(_ context.Context, projectID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return 0, nil
	}
	return r.messages[len(r.messages)-1].ContextTokens, nil
}

func (r *memRecorder) RecentMessages(_ context.Context, projectID string, limit int) ([]MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]MessageRecord, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *memRecorder) lastRecord(t *testing.T) ActionRecord {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if recs := r.records[r.messages[i].ID]; len(recs) > 0 {
			return recs[len(recs)-1]
		}
	}
	t.Fatal("no action records persisted")
	return ActionRecord{}
}

// fakeCapability scripts per-path outcomes.
type fakeCapability struct {
	mu      sync.Mutex
	content map[string]string // path -> returned content
	fail    map[string]error  // path -> forced failure
	calls   []string
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{content: make(map[string]string), fail: make(map[string]error)}
}

func (c *fakeCapability) Execute(_ context.Context, path, content string) (CapabilityResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, path)
	if err := c.fail[path]; err != nil {
		return CapabilityResult{}, err
	}
	return CapabilityResult{Success: true, Content: c.content[path]}, nil
}

func testCaps(cap *fakeCapability) CapabilityMap {
	return CapabilityMap{
		KindCreateFile:      cap,
		KindEditFile:        cap,
		KindDeleteFile:      cap,
		KindCreateDirectory: cap,
		KindRemoveDirectory: cap,
		KindReadFile:        cap,
		KindSearch:          cap,
	}
}

func newTestExecutor(store Recorder, cap *fakeCapability) *Executor {
	return NewExecutor(testCaps(cap), store, NewCounter("test"), nil, "p1")
}

func TestExecuteOne_ReadFoldsIntoState(t *testing.T) {
	store := newMemRecorder()
	cap := newFakeCapability()
	cap.content["a.go"] = "package a"
	exec := newTestExecutor(store, cap)
	st := NewRunState(NewDocument("req"), 100)

	err := exec.ExecuteOne(context.Background(), st, Action{Kind: KindReadFile, TargetPath: "a.go", Message: "Reading a.go"})
	if err != nil {
		t.Fatalf("ExecuteOne() error = %v", err)
	}

	if st.Gathered["a.go"] != "package a" {
		t.Errorf("Gathered[a.go] = %q", st.Gathered["a.go"])
	}
	if !st.ReadFiles["a.go"] {
		t.Error("read path not tracked")
	}
	if st.ContextTokens <= 100 {
		t.Error("context tokens did not grow after a read")
	}
	if len(st.ExecutionLog) != 1 || !strings.HasPrefix(st.ExecutionLog[0], "Read a.go (") {
		t.Errorf("ExecutionLog = %v", st.ExecutionLog)
	}
	if rec := store.lastRecord(t); rec.Status != StatusCompleted {
		t.Errorf("record status = %s, want %s", rec.Status, StatusCompleted)
	}
}

func TestExecuteOne_FailureSettlesRecordAndMessage(t *testing.T) {
	store := newMemRecorder()
	cap := newFakeCapability()
	cap.fail["missing.go"] = errors.New("file not found")
	exec := newTestExecutor(store, cap)
	st := NewRunState(NewDocument("req"), 0)

	err := exec.ExecuteOne(context.Background(), st, Action{Kind: KindReadFile, TargetPath: "missing.go", Message: "Reading missing.go"})
	if err == nil {
		t.Fatal("ExecuteOne() error = nil")
	}

	if rec := store.lastRecord(t); rec.Status != StatusError {
		t.Errorf("record status = %s, want %s", rec.Status, StatusError)
	}
	last := store.messages[len(store.messages)-1]
	if !strings.Contains(last.Content, "Failed to") || !strings.Contains(last.Content, "missing.go") {
		t.Errorf("progress message not rewritten: %q", last.Content)
	}
}

func TestExecuteOne_PersistenceFailureTolerated(t *testing.T) {
	store := newMemRecorder()
	store.failAll = true
	cap := newFakeCapability()
	cap.content["a.go"] = "x"
	exec := newTestExecutor(store, cap)
	st := NewRunState(NewDocument("req"), 0)

	// The action itself must still succeed when the store is down.
	if err := exec.ExecuteOne(context.Background(), st, Action{Kind: KindReadFile, TargetPath: "a.go"}); err != nil {
		t.Fatalf("ExecuteOne() error = %v", err)
	}
	if !st.ReadFiles["a.go"] {
		t.Error("state not updated despite persistence failure")
	}
}

func TestExecuteBatch_StopsAtFirstFailure(t *testing.T) {
	store := newMemRecorder()
	cap := newFakeCapability()
	cap.fail["b.go"] = errors.New("permission denied")
	exec := newTestExecutor(store, cap)
	st := NewRunState(NewDocument("req"), 0)

	actions := []Action{
		{Kind: KindCreateFile, TargetPath: "a.go", Content: "package a"},
		{Kind: KindEditFile, TargetPath: "b.go", Content: "package b"},
		{Kind: KindDeleteFile, TargetPath: "c.go"},
	}

	executed, err := exec.ExecuteBatch(context.Background(), st, actions)
	if err == nil {
		t.Fatal("ExecuteBatch() error = nil")
	}
	if len(executed) != 1 || executed[0].TargetPath != "a.go" {
		t.Errorf("executed prefix = %v, want [a.go]", executed)
	}
	for _, call := range cap.calls {
		if call == "c.go" {
			t.Error("action after the failure was still executed")
		}
	}
	if !strings.Contains(err.Error(), "b.go") {
		t.Errorf("error %v does not name the failed action", err)
	}
}

func TestExecuteBatch_Order(t *testing.T) {
	store := newMemRecorder()
	cap := newFakeCapability()
	exec := newTestExecutor(store, cap)
	st := NewRunState(NewDocument("req"), 0)

	actions := []Action{
		{Kind: KindCreateDirectory, TargetPath: "pkg"},
		{Kind: KindCreateFile, TargetPath: "pkg/a.go", Content: "package pkg"},
		{Kind: KindSearch, TargetPath: "handler"},
	}

	executed, err := exec.ExecuteBatch(context.Background(), st, actions)
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}
	if len(executed) != 3 {
		t.Fatalf("executed %d actions, want 3", len(executed))
	}
	want := []string{"pkg", "pkg/a.go", "handler"}
	for i, call := range cap.calls {
		if call != want[i] {
			t.Errorf("call[%d] = %s, want %s", i, call, want[i])
		}
	}
}

func TestDispatch_UnknownKind(t *testing.T) {
	store := newMemRecorder()
	exec := NewExecutor(CapabilityMap{}, store, NewCounter("test"), nil, "p1")
	st := NewRunState(NewDocument("req"), 0)

	err := exec.ExecuteOne(context.Background(), st, Action{Kind: KindCreateFile, TargetPath: "a.go", Content: "x"})
	if err == nil {
		t.Fatal("ExecuteOne() error = nil for an unmapped kind")
	}
	if Classify(err) != ErrorProcessing {
		t.Errorf("Classify() = %s, want %s", Classify(err), ErrorProcessing)
	}
}
