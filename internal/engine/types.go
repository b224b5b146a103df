package engine

import (
	"context"
	"fmt"
	"time"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	return nil
}

// ActionKind identifies one of the file operations the model may propose.
type ActionKind string

const (
	KindCreateFile      ActionKind = "createFile"
	KindEditFile        ActionKind = "editFile"
	KindDeleteFile      ActionKind = "deleteFile"
	KindCreateDirectory ActionKind = "createDirectory"
	KindRemoveDirectory ActionKind = "removeDirectory"
	KindReadFile        ActionKind = "readFile"
	KindSearch          ActionKind = "search"
)

// Action is a single proposed file-system mutation or inspection.
// Content is required for createFile/editFile and absent otherwise.
type Action struct {
	Kind       ActionKind
	TargetPath string
	Content    string
	Message    string
}

// RequiresContent reports whether this kind of action must carry content.
func (k ActionKind) RequiresContent() bool {
	return k == KindCreateFile || k == KindEditFile
}

// Known reports whether the kind is part of the canonical set.
func (k ActionKind) Known() bool {
	switch k {
	case KindCreateFile, KindEditFile, KindDeleteFile,
		KindCreateDirectory, KindRemoveDirectory, KindReadFile, KindSearch:
		return true
	}
	return false
}

// Response is the typed form of one completion reply.
type Response struct {
	Thinking bool
	Actions  []Action
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Completion is a normalized result of one completion call.
type Completion struct {
	Text      string
	ModelType string
	Usage     Usage
}

// CompletionOptions keeps the knobs forwarded to the provider SDK.
type CompletionOptions struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// CompletionClient abstracts the chosen SDK (OpenAI, Anthropic, etc.).
// Implementations must honor opts.Timeout; the controller additionally
// races the whole thinking phase against its own deadline.
type CompletionClient interface {
	Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (Completion, error)
}

// CapabilityResult is the structured output of one capability call.
// Success-only capabilities (write, delete, mkdir) leave Content empty;
// read and search return the captured text.
type CapabilityResult struct {
	Success bool
	Content string
}

// Capability is a single file-system tool the executor can dispatch to.
type Capability interface {
	Execute(ctx context.Context, path, content string) (CapabilityResult, error)
}

// CapabilityMap binds action kinds to their tools. A missing kind is
// classified as a processing error at dispatch time.
type CapabilityMap map[ActionKind]Capability

// RecordStatus is the lifecycle state of a persisted action record.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusCompleted RecordStatus = "completed"
	StatusError     RecordStatus = "error"
)

// ActionRecord is one externally visible step of a run.
type ActionRecord struct {
	Type      string
	Path      string
	Status    RecordStatus
	Timestamp time.Time
}

// MessageRecord is a persisted progress or chat message.
type MessageRecord struct {
	ID            string
	Role          MessageRole
	Content       string
	TokensInput   int
	TokensOutput  int
	ContextTokens int
	Metadata      map[string]string
	CreatedAt     time.Time
}

// TokenTotals are the cumulative token counters for a project's history.
type TokenTotals struct {
	Input  int
	Output int
}

// Recorder is the persistence collaborator for messages and action records.
// All calls are fire-and-observe: failures are logged by the caller but must
// not abort an otherwise-successful run.
type Recorder interface {
	AppendMessage(ctx context.Context, projectID string, m MessageRecord) (string, error)
	AppendActionRecord(ctx context.Context, messageID string, rec ActionRecord) error
	UpdateActionStatus(ctx context.Context, messageID, path, typ string, status RecordStatus) error
	UpdateMessageContent(ctx context.Context, messageID, content string) error
	SumTokenTotals(ctx context.Context, projectID string) (TokenTotals, error)
	LatestContextTokens(ctx context.Context, projectID string) (int, error)
	RecentMessages(ctx context.Context, projectID string, limit int) ([]MessageRecord, error)
}

// ProjectSource exposes the project tree to the context assembler.
type ProjectSource interface {
	// Layout renders the directory structure, excluded paths omitted.
	Layout(ctx context.Context) (string, error)
	// WalkFiles visits project files in a stable order with size-bounded
	// contents. The walk stops when fn returns false.
	WalkFiles(ctx context.Context, fn func(path, content string) bool) error
}

// RunResult is the top-level outcome of one agent run.
type RunResult struct {
	Success      bool
	Error        string
	ErrorType    ErrorType
	ErrorDetails string
	Executed     []Action
	Summary      string
}
