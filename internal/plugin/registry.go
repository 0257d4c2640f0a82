package plugin

import (
	"fmt"
	"sort"
	"sync"
)

type noteEntry struct {
	requires []Capability
	factory  NoteFactory
}

type buildEntry struct {
	requires []Capability
	factory  BuildFactory
}

// Registry maps plugin names to their factories and declared capabilities.
// Plugins are identified by name alone; configuration refers to them by name.
type Registry struct {
	mu    sync.RWMutex
	note  map[string]noteEntry
	build map[string]buildEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		note:  make(map[string]noteEntry),
		build: make(map[string]buildEntry),
	}
}

// RegisterNote adds a note plugin factory under name. Re-registering a name
// is an error; the built-in set registers once at startup.
func (r *Registry) RegisterNote(name string, requires []Capability, factory NoteFactory) error {
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.note[name]; exists {
		return fmt.Errorf("note plugin %q already registered", name)
	}
	r.note[name] = noteEntry{requires: requires, factory: factory}
	return nil
}

// RegisterBuild adds a build plugin factory under name.
func (r *Registry) RegisterBuild(name string, requires []Capability, factory BuildFactory) error {
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.build[name]; exists {
		return fmt.Errorf("build plugin %q already registered", name)
	}
	r.build[name] = buildEntry{requires: requires, factory: factory}
	return nil
}

// MustRegisterNote is RegisterNote that panics on error. Used by the
// built-in registration table where a duplicate is a programming bug.
func (r *Registry) MustRegisterNote(name string, requires []Capability, factory NoteFactory) {
	if err := r.RegisterNote(name, requires, factory); err != nil {
		panic(err)
	}
}

// MustRegisterBuild is RegisterBuild that panics on error.
func (r *Registry) MustRegisterBuild(name string, requires []Capability, factory BuildFactory) {
	if err := r.RegisterBuild(name, requires, factory); err != nil {
		panic(err)
	}
}

// HasNote reports whether a note plugin factory is registered under name.
func (r *Registry) HasNote(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.note[name]
	return ok
}

// HasBuild reports whether a build plugin factory is registered under name.
func (r *Registry) HasBuild(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.build[name]
	return ok
}

// NoteNames returns the registered note plugin names, sorted.
func (r *Registry) NoteNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.note))
	for name := range r.note {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildNames returns the registered build plugin names, sorted.
func (r *Registry) BuildNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.build))
	for name := range r.build {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) noteEntry(name string) (noteEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.note[name]
	return e, ok
}

func (r *Registry) buildEntry(name string) (buildEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.build[name]
	return e, ok
}
