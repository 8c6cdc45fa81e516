package schema

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Registry is a process-wide mapping from logical module name to a
// compiled schema. One Registry is expected to be shared by every table
// manager in a process; the zero value is not ready to use — construct
// with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	modules map[string]*Schema
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Schema)}
}

// Load compiles the schema file at path and binds it under name,
// replacing any prior binding. If the file is missing its leading
// identifier line, Load rewrites the file on disk by prepending the
// compiler's suggested id and retries exactly once; any other failure is
// fatal and returned as-is.
func (r *Registry) Load(path, name string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(path, name, false)
}

func (r *Registry) load(path, name string, retried bool) (*Schema, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}

	s, err := Parse(string(text))
	if err == nil {
		r.modules[name] = s
		return s, nil
	}

	var missing *MissingIDError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("schema: compile %s: %w", path, err)
	}
	if retried {
		return nil, fmt.Errorf("schema: compile %s after repair: %w", path, err)
	}

	repaired := fmt.Sprintf("@0x%016x;\n", missing.Suggested) + string(text)
	if err := os.WriteFile(path, []byte(repaired), 0o644); err != nil {
		return nil, fmt.Errorf("schema: repair %s: %w", path, err)
	}
	return r.load(path, name, true)
}

// Get returns the schema bound to name, if any.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.modules[name]
	return s, ok
}

// Unload removes the named bindings. With no names given, every binding
// is removed.
func (r *Registry) Unload(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		r.modules = make(map[string]*Schema)
		return
	}
	for _, n := range names {
		delete(r.modules, n)
	}
}

// ResolveStruct returns the named struct declaration from the module
// bound under moduleName.
func (r *Registry) ResolveStruct(moduleName, structName string) (*StructDef, error) {
	r.mu.Lock()
	s, ok := r.modules[moduleName]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("schema: module %q not loaded", moduleName)
	}
	d, ok := s.Struct(structName)
	if !ok {
		return nil, fmt.Errorf("schema: struct %q not found in module %q", structName, moduleName)
	}
	return d, nil
}
