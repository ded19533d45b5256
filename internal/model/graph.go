package model

// Graph is the arena of parsed records: type -> identifier -> record.
// Identifiers keep their first insertion position per type.
type Graph struct {
	types     map[string]*typeIndex
	typeOrder []string
}

type typeIndex struct {
	records map[string]*Record
	order   []string
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{types: make(map[string]*typeIndex)}
}

// EnsureType registers a type with no records yet
func (g *Graph) EnsureType(typeName string) {
	if _, ok := g.types[typeName]; ok {
		return
	}
	g.types[typeName] = &typeIndex{records: make(map[string]*Record)}
	g.typeOrder = append(g.typeOrder, typeName)
}

// Put inserts a named record, replacing any record with the same identifier
func (g *Graph) Put(r *Record) {
	g.EnsureType(r.Type)
	idx := g.types[r.Type]
	if _, ok := idx.records[r.Name]; !ok {
		idx.order = append(idx.order, r.Name)
	}
	idx.records[r.Name] = r
}

// Get looks up a record by type and identifier
func (g *Graph) Get(typeName, name string) (*Record, bool) {
	idx, ok := g.types[typeName]
	if !ok {
		return nil, false
	}
	r, ok := idx.records[name]
	return r, ok
}

// Resolve looks up the record a handle points to
func (g *Graph) Resolve(h Handle) (*Record, bool) {
	return g.Get(h.Type, h.Name)
}

// HasType reports whether a definition of the type was seen
func (g *Graph) HasType(typeName string) bool {
	_, ok := g.types[typeName]
	return ok
}

// Names returns the identifiers of a type in insertion order
func (g *Graph) Names(typeName string) []string {
	idx, ok := g.types[typeName]
	if !ok {
		return nil
	}
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Types returns the known types in first-seen order
func (g *Graph) Types() []string {
	out := make([]string, len(g.typeOrder))
	copy(out, g.typeOrder)
	return out
}

// Len returns the number of records of a type
func (g *Graph) Len(typeName string) int {
	if idx, ok := g.types[typeName]; ok {
		return len(idx.records)
	}
	return 0
}

// Size returns the total number of named records
func (g *Graph) Size() int {
	n := 0
	for _, idx := range g.types {
		n += len(idx.records)
	}
	return n
}

// Empty reports whether no object definitions were registered
func (g *Graph) Empty() bool {
	return len(g.types) == 0
}

// Remove deletes a record
func (g *Graph) Remove(typeName, name string) bool {
	idx, ok := g.types[typeName]
	if !ok {
		return false
	}
	if _, ok := idx.records[name]; !ok {
		return false
	}
	delete(idx.records, name)
	for i, n := range idx.order {
		if n == name {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	return true
}

// Clone copies the definition side of the graph so a status overlay can be
// applied without touching the original.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for _, typeName := range g.typeOrder {
		c.EnsureType(typeName)
		idx := g.types[typeName]
		for _, name := range idx.order {
			c.Put(idx.records[name].clone())
		}
	}
	return c
}
