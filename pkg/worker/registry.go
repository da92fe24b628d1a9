package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// TaskFunc executes one run of a periodic task with its stored JSON args.
type TaskFunc func(ctx context.Context, args json.RawMessage) error

// Registry manages task functions by name.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]TaskFunc
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]TaskFunc),
	}
}

// Register adds a task to the registry.
func (r *Registry) Register(name string, fn TaskFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	r.tasks[name] = fn
	return nil
}

// Get returns a task by name.
func (r *Registry) Get(name string) (TaskFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %q not found", name)
	}
	return fn, nil
}

// List returns all registered task names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
