package tool

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var namePattern = regexp.MustCompile(`^\w+$`)

// Registry holds the tools available to the engine. It is populated once at
// startup and then frozen; after Freeze it is read-only.
// It is instance-based (not global) for better testability.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	frozen bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
// It returns ErrEmptyToolName, ErrInvalidToolName, ErrDuplicateTool, or
// ErrRegistryFrozen when the tool cannot be added.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidToolName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: %s", ErrRegistryFrozen, name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	slices.SortFunc(tools, func(a, b Tool) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return tools
}

// Descriptors returns a serializable description of every tool, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	tools := r.Tools()
	out := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, Descriptor{
			Name:         t.Name(),
			Description:  t.Description(),
			Parameters:   t.Parameters(),
			Category:     t.Category(),
			InputSchema:  t.InputSchema(),
			OutputSchema: t.OutputSchema(),
		})
	}
	return out
}

// Categories groups tool names by category. Names within a group are sorted.
func (r *Registry) Categories() map[Category][]string {
	out := make(map[Category][]string)
	for _, t := range r.Tools() {
		out[t.Category()] = append(out[t.Category()], t.Name())
	}
	return out
}
