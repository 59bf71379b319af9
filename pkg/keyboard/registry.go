package keyboard

import (
	"sync"

	"github.com/matzehuels/keyforge/pkg/errors"
)

// MaxButtons is the number of distinct button names a single registry can
// hold. It is bounded by the width of [ButtonSet].
const MaxButtons = setWords * 64

// Button identifies a physical key position. Buttons are only meaningful
// together with the [Registry] that created them.
type Button uint16

// Registry interns button names into dense integers.
//
// A Registry is safe for concurrent use. Interned names are never released;
// the registry lives as long as the keyboards built from it.
type Registry struct {
	mu    sync.RWMutex
	names []string
	ids   map[string]Button
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]Button)}
}

// Intern returns the button for name, allocating a new one on first use.
// It fails once MaxButtons distinct names have been interned.
func (r *Registry) Intern(name string) (Button, error) {
	if name == "" {
		return 0, errors.New(errors.ErrCodeInvalidKeyboard, "button name cannot be empty")
	}

	r.mu.RLock()
	b, ok := r.ids[name]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.ids[name]; ok {
		return b, nil
	}
	if len(r.names) >= MaxButtons {
		return 0, errors.New(errors.ErrCodeInvalidKeyboard, "too many buttons (max %d)", MaxButtons)
	}
	b = Button(len(r.names))
	r.names = append(r.names, name)
	r.ids[name] = b
	return b, nil
}

// Lookup returns the button interned under name, if any.
func (r *Registry) Lookup(name string) (Button, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.ids[name]
	return b, ok
}

// Name returns the name b was interned under, or "" for unknown buttons.
func (r *Registry) Name(b Button) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(b) >= len(r.names) {
		return ""
	}
	return r.names[b]
}

// Len returns the number of interned names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
