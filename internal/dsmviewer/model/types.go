package model

import "sync"

// typeRegistry interns element type names so thousands of elements share one copy
// of each name and store only a small key. Entries are never evicted.
type typeRegistry struct {
	mu    sync.RWMutex
	ids   map[string]int
	names []string
}

var elementTypes = newTypeRegistry()

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		ids:   map[string]int{"": 0},
		names: []string{""},
	}
}

func (r *typeRegistry) intern(name string) int {
	r.mu.RLock()
	id, ok := r.ids[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	id = len(r.names)
	r.names = append(r.names, name)
	r.ids[name] = id
	return id
}

func (r *typeRegistry) name(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.names) {
		return ""
	}
	return r.names[id]
}
