// Package engine provides agent orchestration functionality.
// This file turns raw completion text into validated actions.

package engine

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rawEnvelope is the only wire shape the parser accepts:
// {"thinking": bool, "actions": [{"action","filePath","content","message"}]}.
type rawEnvelope struct {
	Thinking json.RawMessage   `json:"thinking"`
	Actions  []json.RawMessage `json:"actions"`
}

type rawAction struct {
	Action   string `json:"action"`
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
	Message  string `json:"message"`
}

// actionSchema guards the shape of each action entry before any
// normalization. Entries failing it are dropped, never coerced.
const actionSchema = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action":   {"type": "string", "minLength": 1},
		"filePath": {"type": "string"},
		"content":  {"type": "string"},
		"message":  {"type": "string"}
	}
}`

// kindAliases folds the spellings models actually emit into the canonical
// action set.
var kindAliases = map[string]ActionKind{
	"createfile":       KindCreateFile,
	"create_file":      KindCreateFile,
	"create":           KindCreateFile,
	"write":            KindCreateFile,
	"write_file":       KindCreateFile,
	"editfile":         KindEditFile,
	"edit_file":        KindEditFile,
	"edit":             KindEditFile,
	"update":           KindEditFile,
	"update_file":      KindEditFile,
	"modify":           KindEditFile,
	"deletefile":       KindDeleteFile,
	"delete_file":      KindDeleteFile,
	"delete":           KindDeleteFile,
	"remove":           KindDeleteFile,
	"remove_file":      KindDeleteFile,
	"createdirectory":  KindCreateDirectory,
	"create_directory": KindCreateDirectory,
	"create_dir":       KindCreateDirectory,
	"create_folder":    KindCreateDirectory,
	"mkdir":            KindCreateDirectory,
	"removedirectory":  KindRemoveDirectory,
	"remove_directory": KindRemoveDirectory,
	"remove_dir":       KindRemoveDirectory,
	"delete_directory": KindRemoveDirectory,
	"delete_folder":    KindRemoveDirectory,
	"rmdir":            KindRemoveDirectory,
	"readfile":         KindReadFile,
	"read_file":        KindReadFile,
	"read":             KindReadFile,
	"view":             KindReadFile,
	"search":           KindSearch,
	"grep":             KindSearch,
	"find":             KindSearch,
	"codebase_search":  KindSearch,
}

// NormalizeKind maps a raw action name onto the canonical set. The second
// return is false for unknown kinds.
func NormalizeKind(raw string) (ActionKind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(raw))]
	return k, ok
}

// ParseResponse decodes one completion reply into a typed Response.
//
// A single outer code fence is stripped first (models habitually wrap JSON
// in one). Decode failures raise a parsing-class error carrying a 60-char
// window around the offending offset. The thinking flag defaults to true
// when absent or non-boolean: keep gathering rather than risk premature
// execution. Invalid action entries are dropped with a warning; a
// partially-sound response is still usable.
func ParseResponse(raw string) (Response, error) {
	text := StripFence(raw)

	var env rawEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Response{}, newParseError(text, err)
	}

	// Only the literal booleans override the default. Unmarshal treats
	// null as a no-op rather than an error, so it cannot be trusted here.
	resp := Response{Thinking: true}
	switch strings.TrimSpace(string(env.Thinking)) {
	case "true":
		resp.Thinking = true
	case "false":
		resp.Thinking = false
	}

	schema := gojsonschema.NewStringLoader(actionSchema)
	for i, entry := range env.Actions {
		action, ok := validateAction(schema, i, entry)
		if !ok {
			continue
		}
		resp.Actions = append(resp.Actions, action)
	}

	return resp, nil
}

// validateAction checks one raw entry and normalizes it. Summary-only
// entries and entries with an empty target path are filtered here, before
// the executor or any observer sees them.
func validateAction(schema gojsonschema.JSONLoader, idx int, entry json.RawMessage) (Action, bool) {
	var generic map[string]any
	if err := json.Unmarshal(entry, &generic); err != nil {
		log.Printf("dropping action %d: not an object: %v", idx, err)
		return Action{}, false
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(generic))
	if err != nil {
		log.Printf("dropping action %d: schema validation failed: %v", idx, err)
		return Action{}, false
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		log.Printf("dropping action %d: %s", idx, strings.Join(msgs, "; "))
		return Action{}, false
	}

	var ra rawAction
	if err := json.Unmarshal(entry, &ra); err != nil {
		log.Printf("dropping action %d: %v", idx, err)
		return Action{}, false
	}

	kind, known := NormalizeKind(ra.Action)
	if !known {
		log.Printf("dropping action %d: unknown kind %q", idx, ra.Action)
		return Action{}, false
	}
	if strings.TrimSpace(ra.FilePath) == "" {
		log.Printf("dropping action %d (%s): empty target path", idx, kind)
		return Action{}, false
	}
	if kind.RequiresContent() && ra.Content == "" {
		log.Printf("dropping action %d (%s %s): missing content", idx, kind, ra.FilePath)
		return Action{}, false
	}

	return Action{
		Kind:       kind,
		TargetPath: ra.FilePath,
		Content:    ra.Content,
		Message:    ra.Message,
	}, true
}

// StripFence removes a single outer fenced block, tolerating a language
// tag after the opening backticks. Text without a fence passes through
// unchanged.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the language tag line (```json, ```, etc.).
		first := strings.TrimSpace(body[:nl])
		if first == "" || !strings.ContainsAny(first, "{}[]") {
			body = body[nl+1:]
		}
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// errorWindow extracts a window of text around a decode failure offset for
// diagnostics, 60 chars wide.
func errorWindow(text string, offset int64) string {
	const width = 60
	start := int(offset) - width/2
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(text) {
		end = len(text)
	}
	if start > len(text) {
		start = len(text)
	}
	return text[start:end]
}
