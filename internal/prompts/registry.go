package prompts

import (
	"fmt"
	"sync"
)

// Registry resolves prompt editions by ID. The zero surface is small on
// purpose: callers either pin an exact revision or take the latest
// serviceable one.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]map[Revision]*Prompt
}

var defaultRegistry *Registry
var defaultOnce sync.Once

// Default returns the process-wide registry that the built-in prompts
// register into.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]map[Revision]*Prompt)}
}

// Register adds one prompt edition, replacing an existing edition with
// the same ID and revision.
func (r *Registry) Register(p *Prompt) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byID[p.ID] == nil {
		r.byID[p.ID] = make(map[Revision]*Prompt)
	}
	r.byID[p.ID][p.Rev] = p
}

// Get returns the exact edition, or an error naming what is missing.
func (r *Registry) Get(id string, rev Revision) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	editions, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("prompt not registered: %s", id)
	}
	p, ok := editions[rev]
	if !ok {
		return nil, fmt.Errorf("prompt %s has no revision %s", id, rev)
	}
	return p, nil
}

// Latest returns the newest non-retired edition of a prompt. When every
// edition is retired it falls back to the newest one, so a prompt is
// never resolvable one day and gone the next.
func (r *Registry) Latest(id string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	editions, ok := r.byID[id]
	if !ok || len(editions) == 0 {
		return nil, fmt.Errorf("prompt not registered: %s", id)
	}

	pick := func(includeRetired bool) *Prompt {
		var best *Prompt
		for _, p := range editions {
			if p.Retired && !includeRetired {
				continue
			}
			if best == nil || p.Rev > best.Rev {
				best = p
			}
		}
		return best
	}

	if p := pick(false); p != nil {
		return p, nil
	}
	return pick(true), nil
}
