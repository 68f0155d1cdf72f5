package symcanon

import (
	"sort"
	"sync"
)

// Scope interns variables by name: every Var call with the same name returns
// the same leaf, so one Assign reaches every occurrence. Plain Var creates a
// distinct leaf per call.
type Scope struct {
	mu   sync.Mutex
	vars map[string]*Node
}

func NewScope() *Scope { return &Scope{vars: map[string]*Node{}} }

func (s *Scope) Var(name string) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := Var(name)
	s.vars[name] = v
	return v
}

func (s *Scope) Lookup(name string) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// Bind assigns each value to the variable of that name.
func (s *Scope) Bind(values map[string]float64) {
	for name, v := range values {
		s.Var(name).Assign(v)
	}
}

// Names returns the interned names in sorted order.
func (s *Scope) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
