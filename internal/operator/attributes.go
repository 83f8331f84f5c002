package operator

import (
	"encoding/json"
	"sort"
)

// AttributeSet is a set of row attribute names.
// Use Sorted() for deterministic iteration.
type AttributeSet map[string]struct{}

// NewAttributeSet creates a set holding the given names.
func NewAttributeSet(names ...string) AttributeSet {
	s := make(AttributeSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts names into the set.
func (s AttributeSet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Union inserts every member of other into s.
func (s AttributeSet) Union(other AttributeSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Has reports whether name is a member.
func (s AttributeSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// IsSupersetOf reports whether every member of other is in s.
func (s AttributeSet) IsSupersetOf(other AttributeSet) bool {
	for n := range other {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Sorted returns the members in byte order.
func (s AttributeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s AttributeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes the set from an array of names.
func (s *AttributeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewAttributeSet(names...)
	return nil
}
