package prompts

import (
	"fmt"
	"strings"
)

// Builder composes a system prompt from a registered edition, extra
// fragments and {{variable}} substitutions.
type Builder struct {
	fragments []string
	variables map[string]string
}

// NewBuilder seeds a builder with the given prompt edition.
func NewBuilder(r *Registry, id string, rev Revision) (*Builder, error) {
	base, err := r.Get(id, rev)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base prompt: %w", err)
	}
	return &Builder{
		fragments: []string{base.Content},
		variables: make(map[string]string),
	}, nil
}

// AddFragment appends a block of text, separated from the rest by a
// blank line.
func (b *Builder) AddFragment(text string) *Builder {
	b.fragments = append(b.fragments, text)
	return b
}

// SetVariable records a value for a {{key}} placeholder.
func (b *Builder) SetVariable(key, value string) *Builder {
	b.variables[key] = value
	return b
}

// Build joins the fragments and substitutes every recorded variable.
func (b *Builder) Build() string {
	out := strings.Join(b.fragments, "\n\n")
	for key, value := range b.variables {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// BuildWithRules appends the per-project rules file when it has any
// content, then builds.
func (b *Builder) BuildWithRules(rules string) string {
	if strings.TrimSpace(rules) != "" {
		b.AddFragment("PROJECT RULES:\n" + rules)
	}
	return b.Build()
}
