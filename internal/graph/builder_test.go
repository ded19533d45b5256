package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

func record(typeName string, kv ...string) *model.Record {
	r := model.NewRecord(typeName)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

func TestBuilder_RegisterAssignsIdentifiers(t *testing.T) {
	b := NewBuilder(model.NewGraph(), zap.NewNop())

	b.Register(record("host", "host_name", "web01"))
	b.Register(record("service", "host_name", "web01", "service_description", "http"))
	b.Register(record("contact", "contact_name", "admin"))
	b.Register(record("command", "command_name", "check_ping"))
	b.Register(record("hostescalation", "host_name", "web01"))

	g := b.Finish()
	assert.Equal(t, []string{"web01"}, g.Names("host"))
	assert.Equal(t, []string{"web01;http"}, g.Names("service"))
	assert.Equal(t, []string{"admin"}, g.Names("contact"))
	assert.Equal(t, []string{"check_ping"}, g.Names("command"))
	assert.True(t, g.HasType("hostescalation"))
	assert.Equal(t, 0, g.Len("hostescalation"))

	stats := b.Stats()
	assert.Equal(t, 4, stats.Registered)
	assert.Equal(t, 1, stats.Attached)
}

func TestBuilder_ServiceGroupPairs(t *testing.T) {
	b := NewBuilder(model.NewGraph(), zap.NewNop())
	b.Register(record("host", "host_name", "a"))
	b.Register(record("service", "host_name", "a", "service_description", "ping"))
	b.Register(record("service", "host_name", "a", "service_description", "disk"))
	b.Register(record("servicegroup", "servicegroup_name", "checks", "members", "a,ping,a,disk,a"))

	g := b.Finish()
	group, ok := g.Get("servicegroup", "checks")
	require.True(t, ok)
	assert.Equal(t, []model.Handle{
		{Type: "service", Name: "a;ping"},
		{Type: "service", Name: "a;disk"},
	}, group.Links["service"])
	assert.Equal(t, 0, b.Stats().Deferred)
}

func TestBuilder_ContactGroups(t *testing.T) {
	b := NewBuilder(model.NewGraph(), zap.NewNop())
	b.Register(record("contactgroup", "contactgroup_name", "admins", "members", "alice,bob"))
	b.Register(record("contact", "contact_name", "alice"))
	b.Register(record("contact", "contact_name", "bob"))

	g := b.Finish()
	alice, _ := g.Get("contact", "alice")
	assert.Equal(t, []string{"admins"}, alice.Memberships["group"])
	group, _ := g.Get("contactgroup", "admins")
	assert.Len(t, group.Links["contact"], 2)
}

func TestBuilder_DeferredOnce(t *testing.T) {
	b := NewBuilder(model.NewGraph(), zap.NewNop())
	b.Register(record("hostescalation", "host_name", "missing"))
	b.Register(record("host", "host_name", "present"))

	b.ProcessDeferred()
	assert.Equal(t, 1, b.Stats().Dropped)

	b.ProcessDeferred()
	assert.Equal(t, 1, b.Stats().Dropped)
}

func TestBuilder_ServiceWithUnknownHost(t *testing.T) {
	b := NewBuilder(model.NewGraph(), zap.NewNop())
	b.Register(record("service", "host_name", "nowhere", "service_description", "ping"))

	g := b.Finish()
	svc, ok := g.Get("service", "nowhere;ping")
	require.True(t, ok)
	assert.Empty(t, svc.Links["host"])
}
