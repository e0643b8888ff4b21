package conversation

import (
	"encoding/json"
	"sort"
)

// PathSet is an order-irrelevant set of filesystem paths. It is
// persisted as a JSON array and deserializes back into a set, so
// duplicates collapse and insertion order is never significant.
type PathSet map[string]struct{}

func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s PathSet) Add(path string) {
	s[path] = struct{}{}
}

func (s PathSet) Remove(path string) {
	delete(s, path)
}

func (s PathSet) Contains(path string) bool {
	_, ok := s[path]
	return ok
}

func (s PathSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexicographic order.
func (s PathSet) Sorted() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s PathSet) Clone() PathSet {
	ret := make(PathSet, len(s))
	for p := range s {
		ret[p] = struct{}{}
	}
	return ret
}

func (s PathSet) Equal(other PathSet) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if !other.Contains(p) {
			return false
		}
	}
	return true
}

func (s PathSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PathSet) UnmarshalJSON(data []byte) error {
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return err
	}
	*s = NewPathSet(paths...)
	return nil
}
