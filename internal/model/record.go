package model

// Handle addresses a record in the graph arena
type Handle struct {
	Type string
	Name string
}

func (h Handle) String() string {
	return h.Type + ":" + h.Name
}

// Record is one parsed object definition
type Record struct {
	Type string
	// Name is the identifier, empty when the type has none (escalations, dependencies)
	Name string

	attrs map[string]string
	keys  []string

	// Links hold handles to other records: "host" on a hostgroup, "services" on a host
	Links map[string][]Handle
	// Memberships hold group identifiers by property: "group" on a host
	Memberships map[string][]string
	// Children hold owned unnamed definitions: "escalation" on a host
	Children map[string][]*Record

	// Status is the runtime state overlaid from the status file
	Status *RuntimeState
	// Lists hold list-valued runtime state: "comment", "downtime"
	Lists map[string][]*RuntimeState
}

// NewRecord creates an empty record of the given type
func NewRecord(typeName string) *Record {
	return &Record{
		Type:        typeName,
		attrs:       make(map[string]string),
		Links:       make(map[string][]Handle),
		Memberships: make(map[string][]string),
		Children:    make(map[string][]*Record),
		Lists:       make(map[string][]*RuntimeState),
	}
}

// Set stores an attribute; a repeated key overwrites the value in place
func (r *Record) Set(key, value string) {
	if _, ok := r.attrs[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.attrs[key] = value
}

// Attr returns an attribute value
func (r *Record) Attr(key string) (string, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// Keys returns attribute names in declaration order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Attributes returns a copy of all attributes
func (r *Record) Attributes() map[string]string {
	out := make(map[string]string, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Handle returns the arena address of the record
func (r *Record) Handle() Handle {
	return Handle{Type: r.Type, Name: r.Name}
}

// Link appends a handle under prop unless already present
func (r *Record) Link(prop string, h Handle) bool {
	for _, existing := range r.Links[prop] {
		if existing == h {
			return false
		}
	}
	r.Links[prop] = append(r.Links[prop], h)
	return true
}

// AddMembership appends a group identifier under prop unless already present
func (r *Record) AddMembership(prop, group string) bool {
	for _, existing := range r.Memberships[prop] {
		if existing == group {
			return false
		}
	}
	r.Memberships[prop] = append(r.Memberships[prop], group)
	return true
}

// AddChild attaches an owned definition under prop
func (r *Record) AddChild(prop string, child *Record) {
	r.Children[prop] = append(r.Children[prop], child)
}

// clone copies the definition side of the record. Runtime state is not copied.
func (r *Record) clone() *Record {
	c := NewRecord(r.Type)
	c.Name = r.Name
	for _, k := range r.keys {
		c.Set(k, r.attrs[k])
	}
	for prop, hs := range r.Links {
		c.Links[prop] = append([]Handle(nil), hs...)
	}
	for prop, gs := range r.Memberships {
		c.Memberships[prop] = append([]string(nil), gs...)
	}
	for prop, children := range r.Children {
		for _, child := range children {
			c.Children[prop] = append(c.Children[prop], child.clone())
		}
	}
	return c
}
