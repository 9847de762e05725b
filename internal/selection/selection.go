// Package selection holds the ordered, de-duplicated set of file paths queued
// for transcoding.
package selection

// Set preserves insertion order for display and rejects duplicates as no-ops.
type Set struct {
	ordered []string
	members map[string]struct{}
}

// New returns an empty selection set.
func New() *Set {
	return &Set{members: make(map[string]struct{})}
}

// Add appends path unless already present. Reports whether the set changed.
func (s *Set) Add(path string) bool {
	if _, ok := s.members[path]; ok {
		return false
	}
	s.members[path] = struct{}{}
	s.ordered = append(s.ordered, path)
	return true
}

// Remove drops path from the set. Reports whether it was present.
func (s *Set) Remove(path string) bool {
	if _, ok := s.members[path]; !ok {
		return false
	}
	delete(s.members, path)
	for i, existing := range s.ordered {
		if existing == path {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether path is selected.
func (s *Set) Contains(path string) bool {
	_, ok := s.members[path]
	return ok
}

// Paths returns the selected paths in insertion order.
func (s *Set) Paths() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of selected paths.
func (s *Set) Len() int {
	return len(s.ordered)
}

// Clear removes every selected path.
func (s *Set) Clear() {
	s.ordered = nil
	s.members = make(map[string]struct{})
}
