// Package engine provides agent orchestration functionality.
// This file contains the context document sent to the completion service.

package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// sectionID keys one named region of the context document. Rebuilding a
// section replaces it wholesale, which is what makes every assembler
// operation idempotent: there is no string surgery, only keyed sections
// rendered in a fixed order.
type sectionID int

const (
	secIntro sectionID = iota
	secTracking
	secWarning
	secLayout
	secHistory
	secRequest
	secFiles
	secLog
	secErrors
	secForce
	sectionCount
)

// Section tags visible in the rendered document.
const (
	tagTracking = "ALREADY READ (do not re-read)"
	tagWarning  = "ITERATION WARNING"
	tagFiles    = "FILE CONTENTS"
	tagLog      = "EXECUTION LOG"
	tagErrors   = "ERROR IN PREVIOUS ITERATION"
	tagForce    = "FINAL NOTICE"
)

// Document is the mutable context blob for one run. The controller owns
// the only copy; Render produces the text actually sent to the model.
type Document struct {
	sections [sectionCount]string
}

// NewDocument creates an empty context document with the fixed intro.
func NewDocument(request string) *Document {
	d := &Document{}
	d.sections[secIntro] = "You are modifying the project described below."
	d.sections[secRequest] = "MODIFICATION REQUEST:\n" + request
	return d
}

// Render assembles the document text. Sections render in declaration
// order, with the tracking and warning notes near the top, right after
// the intro paragraph.
func (d *Document) Render() string {
	var b strings.Builder
	for i := sectionID(0); i < sectionCount; i++ {
		s := d.sections[i]
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}
	return b.String()
}

// Assembler builds and refreshes context documents. All methods are pure
// with respect to external state and safe to call from concurrent runs
// against different projects.
type Assembler struct {
	counter *Counter
}

// NewAssembler returns an Assembler that accounts tokens with counter.
func NewAssembler(counter *Counter) *Assembler {
	return &Assembler{counter: counter}
}

// BuildInitial assembles the starting document for a run: directory
// structure plus size-bounded file contents, stopping once budget tokens
// have been spent. Excluded paths never reach this method, so they cost
// zero tokens. Returns the document and the tokens consumed.
func (a *Assembler) BuildInitial(ctx context.Context, src ProjectSource, request string, budget int) (*Document, int, error) {
	doc := NewDocument(request)

	layout, err := src.Layout(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build project layout: %w", err)
	}
	doc.sections[secLayout] = "PROJECT STRUCTURE:\n" + layout

	spent := a.counter.Count(layout)
	var files strings.Builder
	walkErr := src.WalkFiles(ctx, func(path, content string) bool {
		cost := a.counter.Count(content)
		if spent+cost > budget {
			return false
		}
		spent += cost
		fmt.Fprintf(&files, "--- %s ---\n%s\n", path, content)
		return true
	})
	if walkErr != nil {
		return nil, 0, fmt.Errorf("failed to walk project files: %w", walkErr)
	}
	if files.Len() > 0 {
		doc.sections[secFiles] = tagFiles + ":\n" + files.String()
	}

	return doc, spent, nil
}

// WithHistory rewrites the chat-history section from recent messages
// (oldest first).
func (a *Assembler) WithHistory(doc *Document, history []MessageRecord) {
	if len(history) == 0 {
		doc.sections[secHistory] = ""
		return
	}
	var b strings.Builder
	b.WriteString("RECENT CONVERSATION:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	doc.sections[secHistory] = strings.TrimRight(b.String(), "\n")
}

// WithTracking injects or replaces the already-read section (only when
// readFiles is non-empty) and, once the iteration count passes the warning
// threshold, a notice urging a move to execution. Calling it twice with
// identical inputs yields a byte-identical document.
func (a *Assembler) WithTracking(doc *Document, readFiles map[string]bool, iteration int, cfg Config) {
	if len(readFiles) == 0 {
		doc.sections[secTracking] = ""
	} else {
		paths := make([]string, 0, len(readFiles))
		for p := range readFiles {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		doc.sections[secTracking] = tagTracking + ":\n" + strings.Join(paths, "\n")
	}

	if iteration >= cfg.warnThreshold() {
		doc.sections[secWarning] = fmt.Sprintf(
			"%s: you have used %d of %d iterations. Stop gathering context and move to implementation now.",
			tagWarning, iteration, cfg.MaxIterations)
	} else {
		doc.sections[secWarning] = ""
	}
}

// WithGathered strips any previous file-contents and execution-log
// sections and rewrites them from the current maps. No duplicate or stale
// file content survives across iterations.
func (a *Assembler) WithGathered(doc *Document, gathered map[string]string, executionLog []string) {
	if len(gathered) == 0 {
		doc.sections[secFiles] = ""
	} else {
		paths := make([]string, 0, len(gathered))
		for p := range gathered {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		var b strings.Builder
		b.WriteString(tagFiles + ":\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", p, gathered[p])
		}
		doc.sections[secFiles] = strings.TrimRight(b.String(), "\n")
	}

	if len(executionLog) == 0 {
		doc.sections[secLog] = ""
	} else {
		doc.sections[secLog] = tagLog + ":\n" + strings.Join(executionLog, "\n")
	}
}

// WithIterationError appends a visible note about a recovered iteration
// failure. Errors accumulate for the life of the run; hiding them would
// invite the model to repeat the same mistake.
func (a *Assembler) WithIterationError(doc *Document, iteration int, err error) {
	note := fmt.Sprintf("%s %d: %v", tagErrors, iteration, err)
	if doc.sections[secErrors] == "" {
		doc.sections[secErrors] = note
	} else {
		doc.sections[secErrors] += "\n" + note
	}
}

// WithForcedExecution injects the terminal notice that ends the thinking
// phase. Idempotent like every other section write.
func (a *Assembler) WithForcedExecution(doc *Document) {
	doc.sections[secForce] = tagForce + ": context gathering is over. " +
		"You MUST respond with thinking=false and the complete list of file actions that implement the request. " +
		"Do not request any further reads."
}
