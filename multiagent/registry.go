package multiagent

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atelierlabs/atelier/llm"
)

// Registry maps tool names to tools. The expert roles and the planner role
// run against separate registries because their shared tool names (read,
// list) resolve to different variants.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns a tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ForRole resolves a role's tool names against the registry. The set is
// closed at construction time; an unknown name is a wiring bug and fails
// fast.
func (r *Registry) ForRole(names []string) ([]*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolved := make([]*Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("role references unregistered tool %q", name)
		}
		resolved = append(resolved, t)
	}
	return resolved, nil
}

// Defs converts the named tools to wire definitions for a model request,
// preserving the given order.
func (r *Registry) Defs(names []string) []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			defs = append(defs, llm.ToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
	}
	return defs
}

// NewExpertRegistry builds the tool set backing the generator and reviewer
// roles.
func NewExpertRegistry(execTimeout time.Duration) *Registry {
	r := NewRegistry()
	r.Register(NewWriteFileTool())
	r.Register(NewReadFileTool())
	r.Register(NewFindReplaceTool())
	r.Register(NewListDirectoryTool())
	r.Register(NewExecuteBashTool(execTimeout))
	return r
}

// NewPlannerRegistry builds the tool set backing the planner role. The
// read and list variants cap content harder and phrase missing paths
// differently from the expert ones.
func NewPlannerRegistry(safeExecTimeout time.Duration) *Registry {
	r := NewRegistry()
	r.Register(NewPlannerReadFileTool())
	r.Register(NewPlannerListDirectoryTool())
	r.Register(NewExecuteSafeBashTool(safeExecTimeout))
	return r
}
