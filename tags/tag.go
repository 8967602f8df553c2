package tags

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// MaxTagLength is the maximum allowed length of a tag in bytes.
const MaxTagLength = 255

// Tag names a unit of cacheable content or a dependency class, such as
// "node:5" or "node_list".
type Tag string

// Validate checks that t is usable as a cache tag. Tags are emitted as
// space-separated header values, so whitespace and control characters are
// rejected.
func (t Tag) Validate() error {
	if t == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTag)
	}
	if len(t) > MaxTagLength {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidTag, MaxTagLength)
	}
	if strings.IndexFunc(string(t), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidTag, string(t))
	}
	return nil
}

// Set is an unordered collection of distinct tags. It is the mutable handle
// passed to alter collaborators.
//
// The zero value is an empty set ready for use. Copying a Set shares its
// storage; use Clone for an independent copy.
type Set struct {
	m map[Tag]struct{}
}

// NewSet builds a set from tags, rejecting the first invalid one.
func NewSet(tags ...Tag) (Set, error) {
	s := Set{m: make(map[Tag]struct{}, len(tags))}
	for _, t := range tags {
		if err := s.Add(t); err != nil {
			return Set{}, err
		}
	}
	return s, nil
}

// MustSet is like NewSet but panics on an invalid tag.
func MustSet(tags ...Tag) Set {
	s, err := NewSet(tags...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromStrings builds a set from plain strings.
func FromStrings(values ...string) (Set, error) {
	ts := make([]Tag, len(values))
	for i, v := range values {
		ts[i] = Tag(v)
	}
	return NewSet(ts...)
}

// Add inserts t. Adding a tag already present has no effect.
func (s *Set) Add(t Tag) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if s.m == nil {
		s.m = make(map[Tag]struct{})
	}
	s.m[t] = struct{}{}
	return nil
}

// Remove deletes t and reports whether it was present.
func (s *Set) Remove(t Tag) bool {
	if _, ok := s.m[t]; !ok {
		return false
	}
	delete(s.m, t)
	return true
}

// RemoveFunc deletes every tag for which match returns true and returns the
// number removed.
func (s *Set) RemoveFunc(match func(Tag) bool) int {
	n := 0
	for t := range s.m {
		if match(t) {
			delete(s.m, t)
			n++
		}
	}
	return n
}

// Has reports whether t is in the set.
func (s Set) Has(t Tag) bool {
	_, ok := s.m[t]
	return ok
}

// Len returns the number of tags.
func (s Set) Len() int {
	return len(s.m)
}

// Sorted returns the tags in lexical order.
func (s Set) Sorted() []Tag {
	out := make([]Tag, 0, len(s.m))
	for t := range s.m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the tags as strings in lexical order.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = string(t)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	c := Set{m: make(map[Tag]struct{}, len(s.m))}
	for t := range s.m {
		c.m[t] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same tags.
func (s Set) Equal(other Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for t := range s.m {
		if _, ok := other.m[t]; !ok {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), " ") + "}"
}
