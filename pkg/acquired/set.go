package acquired

import (
	"gpbackup/pkg/photos"
)

// Set is the ordered collection of media ids already downloaded
type Set struct {
	ids   []string
	index map[string]struct{}
}

// NewSet builds a set from ids, keeping the first occurrence of duplicates
func NewSet(ids []string) *Set {
	s := &Set{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, seen := s.index[id]; seen {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Contains reports whether id was already downloaded
func (s *Set) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// IDs returns a copy of the ids in stored order
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// Len returns the number of ids
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// FilterUnacquired returns the candidates whose id is not in set, preserving order
func FilterUnacquired(candidates []photos.MediaDescriptor, set *Set) []photos.MediaDescriptor {
	out := make([]photos.MediaDescriptor, 0, len(candidates))
	for _, c := range candidates {
		if !set.Contains(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Merge returns newIDs followed by previous, dropping later duplicates
func Merge(newIDs []string, previous *Set) []string {
	merged := make([]string, 0, len(newIDs)+previous.Len())
	seen := make(map[string]struct{}, cap(merged))
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}

	for _, id := range newIDs {
		add(id)
	}
	for _, id := range previous.IDs() {
		add(id)
	}
	return merged
}
