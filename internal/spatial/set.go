package spatial

import "github.com/sells-group/popgrid/internal/layer"

// Set holds one index per layer kind. A kind with no layer behaves as an empty
// layer.
type Set struct {
	indexes map[layer.Kind]*Index
}

// NewSet indexes each layer. Layers of the same kind must be merged by the
// caller; a later layer replaces an earlier one.
func NewSet(layers ...*layer.Layer) *Set {
	s := &Set{indexes: make(map[layer.Kind]*Index, len(layers))}
	for _, l := range layers {
		if l == nil {
			continue
		}
		s.indexes[l.Kind] = Build(l)
	}
	return s
}

// Get returns the index of kind, or an empty index.
func (s *Set) Get(kind layer.Kind) *Index {
	if s != nil {
		if idx, ok := s.indexes[kind]; ok {
			return idx
		}
	}
	return &Index{kind: kind}
}
