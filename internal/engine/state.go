// Package engine provides agent orchestration functionality.
// See DESIGN.md for an architecture overview.

package engine

// RunState is owned exclusively by the controller for the duration of one
// run. Nothing in it is shared across concurrent runs of the same project;
// the run lock guarantees there is never more than one.
type RunState struct {
	Iteration     int               // Current iteration, bounded by Config.MaxIterations
	ReadFiles     map[string]bool   // Paths already read this run, append-only
	RepeatReads   map[string]int    // Per-path count of batches that re-requested a read
	Gathered      map[string]string // path -> file content (or error marker)
	ExecutionLog  []string          // Human-readable trace lines ("Read X")
	Doc           *Document         // The single mutable context document
	Totals        Usage             // Tokens fed to and emitted by the model this run
	ContextTokens int               // Cumulative context tokens, seeded from the store
}

// NewRunState returns an empty state seeded with the latest persisted
// context-token total.
func NewRunState(doc *Document, contextTokens int) *RunState {
	return &RunState{
		ReadFiles:     make(map[string]bool),
		RepeatReads:   make(map[string]int),
		Gathered:      make(map[string]string),
		Doc:           doc,
		ContextTokens: contextTokens,
	}
}

// NoteRepeatReads counts readFile proposals that target already-read paths.
// It returns true once any path has been re-requested in enough distinct
// batches to trip the duplicate-read limit.
func (st *RunState) NoteRepeatReads(actions []Action) bool {
	tripped := false
	for _, a := range actions {
		if a.Kind != KindReadFile {
			continue
		}
		if !st.ReadFiles[a.TargetPath] {
			continue
		}
		st.RepeatReads[a.TargetPath]++
		if st.RepeatReads[a.TargetPath]+1 >= DuplicateReadLimit {
			tripped = true
		}
	}
	return tripped
}
