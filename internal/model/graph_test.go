package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(typeName, name string) *Record {
	r := NewRecord(typeName)
	r.Name = name
	r.Set(typeName+"_name", name)
	return r
}

func TestGraph_InsertionOrder(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"c", "a", "b"} {
		g.Put(named("host", n))
	}
	g.Put(named("hostgroup", "all"))

	assert.Equal(t, []string{"c", "a", "b"}, g.Names("host"))
	assert.Equal(t, []string{"host", "hostgroup"}, g.Types())

	replacement := named("host", "a")
	replacement.Set("address", "10.0.0.1")
	g.Put(replacement)

	assert.Equal(t, []string{"c", "a", "b"}, g.Names("host"))
	got, ok := g.Get("host", "a")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 4, g.Size())
}

func TestGraph_Remove(t *testing.T) {
	g := NewGraph()
	g.Put(named("host", "a"))
	g.Put(named("host", "b"))

	assert.True(t, g.Remove("host", "a"))
	assert.False(t, g.Remove("host", "a"))
	assert.Equal(t, []string{"b"}, g.Names("host"))
	assert.Equal(t, 1, g.Len("host"))
}

func TestGraph_CloneIsolated(t *testing.T) {
	g := NewGraph()
	h := named("host", "a")
	h.AddMembership("group", "linux")
	h.Status = NewRuntimeState("hoststatus", "current_state=0")
	g.Put(h)

	c := g.Clone()
	ch, ok := c.Get("host", "a")
	require.True(t, ok)
	assert.NotSame(t, h, ch)
	assert.Nil(t, ch.Status)
	assert.Equal(t, []string{"linux"}, ch.Memberships["group"])

	ch.AddMembership("group", "web")
	ch.Set("address", "x")
	assert.Equal(t, []string{"linux"}, h.Memberships["group"])
	_, has := h.Attr("address")
	assert.False(t, has)
}

func TestRecord_SetKeepsFirstPosition(t *testing.T) {
	r := NewRecord("host")
	r.Set("host_name", "a")
	r.Set("address", "1")
	r.Set("host_name", "b")

	assert.Equal(t, []string{"host_name", "address"}, r.Keys())
	v, _ := r.Attr("host_name")
	assert.Equal(t, "b", v)
}

func TestRecord_LinksAreUnique(t *testing.T) {
	r := NewRecord("hostgroup")
	h := Handle{Type: "host", Name: "a"}

	assert.True(t, r.Link("host", h))
	assert.False(t, r.Link("host", h))
	assert.Len(t, r.Links["host"], 1)
	assert.Equal(t, "host:a", h.String())
}
