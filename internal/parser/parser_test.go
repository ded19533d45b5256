package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

const simpleObjects = `
define hostescalation {
    host_name	test
    key	value
}

define host {
    host_name	test
    alias	test123
}

define host {
    host_name	test2
    alias	test123
}

define service {
    host_name	test
    service_description	Current Users
}

define servicegroup {
    servicegroup_name	group
    members	test,Current Users
}
        `

const runtimeState1 = `

hoststatus {
    host_name=test
    current_state=3
    test=test123
}

hoststatus {
    host_name=test2
    current_state=3
    test=test123
}

servicestatus {
    host_name=test
    service_description=Current Users
    current_state=3
}

hostcomment {
    host_name=test
    key=value1
}

hostcomment {
    host_name=test
    key=value2
}`

const runtimeState2 = `

hoststatus {
    host_name=test
    current_state=2
    test=test123
}

hoststatus {
    host_name=test2
    current_state=2
    test=test123
}

servicestatus {
    host_name=test
    service_description=Current Users
    current_state=2
}

hostcomment {
    host_name=test
    key=value14
}
hostcomment {
    host_name=test
    key=value15
}

hostcomment {
    host_name=test
    key=value24
}`

func parseObjects(t *testing.T, content string) *model.Graph {
	t.Helper()
	g, _, err := NewParser(zap.NewNop()).ParseObjects(strings.NewReader(content))
	require.NoError(t, err)
	return g
}

func mustGet(t *testing.T, g *model.Graph, typeName, name string) *model.Record {
	t.Helper()
	r, ok := g.Get(typeName, name)
	require.True(t, ok, "missing %s %s", typeName, name)
	return r
}

func TestParseObjects_Simple(t *testing.T) {
	g := parseObjects(t, simpleObjects)

	require.True(t, g.HasType("host"))
	require.True(t, g.HasType("service"))

	host := mustGet(t, g, "host", "test")
	name, _ := host.Attr("host_name")
	assert.Equal(t, "test", name)

	require.Len(t, host.Children["escalation"], 1)
	key, _ := host.Children["escalation"][0].Attr("key")
	assert.Equal(t, "value", key)

	svc := mustGet(t, g, "service", "test;Current Users")
	assert.Equal(t, []string{"group"}, svc.Memberships["group"])

	group := mustGet(t, g, "servicegroup", "group")
	assert.Equal(t, []model.Handle{{Type: "service", Name: "test;Current Users"}}, group.Links["service"])

	assert.Equal(t, "test2", mustGet(t, g, "host", "test2").Name)
}

func TestParseObjects_RoundTrip(t *testing.T) {
	content := "define host {\n" +
		"\thost_name\tweb01\n" +
		"\taddress\t10.0.0.1\n" +
		"\tnotes\tfirst\tsecond\n" +
		"\ticon_image\n" +
		"\taddress\t10.0.0.2\n" +
		"}\n"

	g := parseObjects(t, content)
	host := mustGet(t, g, "host", "web01")

	assert.Equal(t, map[string]string{
		"host_name":  "web01",
		"address":    "10.0.0.2",
		"notes":      "first\tsecond",
		"icon_image": "",
	}, host.Attributes())
	assert.Equal(t, []string{"host_name", "address", "notes", "icon_image"}, host.Keys())
}

func TestParseObjects_GroupMembershipSymmetry(t *testing.T) {
	content := `
define host {
	host_name	h1
}
define host {
	host_name	h2
}
define hostgroup {
	hostgroup_name	G
	members	h1, h2, h1
}
`
	g := parseObjects(t, content)

	group := mustGet(t, g, "hostgroup", "G")
	assert.ElementsMatch(t, []model.Handle{{Type: "host", Name: "h1"}, {Type: "host", Name: "h2"}}, group.Links["host"])
	assert.Equal(t, []string{"G"}, mustGet(t, g, "host", "h1").Memberships["group"])
	assert.Equal(t, []string{"G"}, mustGet(t, g, "host", "h2").Memberships["group"])
}

func TestParseObjects_DeferredConvergence(t *testing.T) {
	hosts := "define host {\n\thost_name\th1\n}\ndefine host {\n\thost_name\th2\n}\n"
	group := "define hostgroup {\n\thostgroup_name\tG\n\tmembers\th1,h2\n}\n"
	partial := "define host {\n\thost_name\th1\n}\n" + group + "define host {\n\thost_name\th2\n}\n"

	after := parseObjects(t, hosts+group)

	for name, content := range map[string]string{"group first": group + hosts, "group between": partial} {
		t.Run(name, func(t *testing.T) {
			g := parseObjects(t, content)

			assert.Equal(t, mustGet(t, after, "hostgroup", "G").Links, mustGet(t, g, "hostgroup", "G").Links)
			for _, h := range []string{"h1", "h2"} {
				assert.Equal(t, mustGet(t, after, "host", h).Memberships, mustGet(t, g, "host", h).Memberships)
			}
		})
	}
}

func TestParseObjects_DeferredConvergenceMultipleGroups(t *testing.T) {
	host := "define host {\n\thost_name\th1\n}\n"
	g1 := "define hostgroup {\n\thostgroup_name\tG1\n\tmembers\th1\n}\n"
	g2 := "define hostgroup {\n\thostgroup_name\tG2\n\tmembers\th1\n}\n"

	after := mustGet(t, parseObjects(t, host+g1+g2), "host", "h1").Memberships["group"]
	require.Len(t, after, 2)

	for name, content := range map[string]string{"first group before": g1 + host + g2, "both before": g1 + g2 + host} {
		t.Run(name, func(t *testing.T) {
			got := mustGet(t, parseObjects(t, content), "host", "h1").Memberships["group"]
			assert.ElementsMatch(t, after, got)
		})
	}
}

func TestParseObjects_UnresolvedMemberIsDropped(t *testing.T) {
	content := `
define hostgroup {
	hostgroup_name	G
	members	h1,ghost
}
define host {
	host_name	h1
}
`
	g, stats, err := NewParser(zap.NewNop()).ParseObjects(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, []model.Handle{{Type: "host", Name: "h1"}}, mustGet(t, g, "hostgroup", "G").Links["host"])
	assert.Equal(t, 1, stats.Graph.Deferred)
	assert.Equal(t, 1, stats.Graph.Dropped)
}

func TestParseObjects_HostServiceConnections(t *testing.T) {
	g := parseObjects(t, simpleObjects)

	svc := mustGet(t, g, "service", "test;Current Users")
	assert.Equal(t, []model.Handle{{Type: "host", Name: "test"}}, svc.Links["host"])

	host := mustGet(t, g, "host", "test")
	assert.Equal(t, []model.Handle{svc.Handle()}, host.Links["services"])
	assert.Empty(t, mustGet(t, g, "host", "test2").Links["services"])
}

func TestParseObjects_CommentsAndDirectives(t *testing.T) {
	content := `# generated file
cfg_file=/etc/icinga/objects.cfg

define host {
	host_name	web01
	# not a comment here
}
`
	g, stats, err := NewParser(zap.NewNop()).ParseObjects(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Directives)
	host := mustGet(t, g, "host", "web01")
	_, ok := host.Attr("# not a comment here")
	assert.True(t, ok)
}

func TestParseObjects_UnexpectedEOF(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"trailing newline", "define host {\n\thost_name\ta\n\talias\tb\n", 3},
		{"no trailing newline", "define host {\n\thost_name\ta", 2},
		{"after complete block", "define host {\n}\n\ndefine host {\n", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, err := NewParser(zap.NewNop()).ParseObjects(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Nil(t, g)

			var se *errors.StatusdatError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, errors.ErrCodeUnexpectedEOF, se.Code)
			assert.Equal(t, tt.line, se.Line())
		})
	}
}

func TestParseRuntimeState(t *testing.T) {
	p := NewParser(zap.NewNop())
	g := parseObjects(t, simpleObjects)

	_, stats, err := p.ParseRuntimeState(strings.NewReader(runtimeState1), g)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.StatusBlocks)

	host := mustGet(t, g, "host", "test")
	require.NotNil(t, host.Status)
	assert.Equal(t, "3", host.Status.Value("current_state"))
	assert.Equal(t, host.Handle(), host.Status.Owner)
	assert.Len(t, host.Lists["comment"], 2)

	svc := mustGet(t, g, "service", "test;Current Users")
	require.NotNil(t, svc.Status)
	assert.Equal(t, "3", svc.Status.Value("current_state"))
}

func TestParseRuntimeState_Overwrite(t *testing.T) {
	p := NewParser(zap.NewNop())
	g := parseObjects(t, simpleObjects)

	_, _, err := p.ParseRuntimeState(strings.NewReader(runtimeState1), g)
	require.NoError(t, err)
	_, _, err = p.ParseRuntimeState(strings.NewReader(runtimeState2), g)
	require.NoError(t, err)

	host := mustGet(t, g, "host", "test")
	assert.Equal(t, "2", host.Status.Value("current_state"))
	require.Len(t, host.Lists["comment"], 3)
	assert.Equal(t, "value14", host.Lists["comment"][0].Value("key"))
}

func TestParseRuntimeState_RemovedListItems(t *testing.T) {
	p := NewParser(zap.NewNop())
	g := parseObjects(t, simpleObjects)

	_, _, err := p.ParseRuntimeState(strings.NewReader(runtimeState1), g)
	require.NoError(t, err)
	require.Len(t, mustGet(t, g, "host", "test").Lists["comment"], 2)

	withoutComments := "hoststatus {\n    host_name=test\n    current_state=0\n}\n"
	_, stats, err := p.ParseRuntimeState(strings.NewReader(withoutComments), g)
	require.NoError(t, err)

	host := mustGet(t, g, "host", "test")
	assert.Equal(t, 0, stats.ListItems)
	assert.Empty(t, host.Lists["comment"])
	assert.Equal(t, "0", host.Status.Value("current_state"))
}

func TestParseRuntimeState_UnknownHost(t *testing.T) {
	p := NewParser(zap.NewNop())
	g := parseObjects(t, simpleObjects)

	content := runtimeState1 + "\n\nhoststatus {\n    host_name=ghost\n    current_state=0\n}\n"
	_, _, err := p.ParseRuntimeState(strings.NewReader(content), g)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownObject, errors.GetCode(err))
	assert.Contains(t, err.Error(), "ghost")

	_, ok := g.Get("host", "ghost")
	assert.False(t, ok)
	assert.Nil(t, mustGet(t, g, "host", "test").Status)
	assert.Empty(t, mustGet(t, g, "host", "test").Lists["comment"])
}

func TestParseRuntimeState_WithoutObjects(t *testing.T) {
	p := NewParser(zap.NewNop())

	_, _, err := p.ParseRuntimeState(strings.NewReader(runtimeState1), nil)
	assert.Equal(t, errors.ErrCodeNoObjectsData, errors.GetCode(err))

	_, _, err = p.ParseRuntimeState(strings.NewReader(runtimeState1), model.NewGraph())
	assert.Equal(t, errors.ErrCodeNoObjectsData, errors.GetCode(err))
}

func TestParseRuntimeState_SkipsUnrelatedBlocks(t *testing.T) {
	p := NewParser(zap.NewNop())
	g := parseObjects(t, simpleObjects)

	content := `# status file
info {
	created=1700000000
	version=1.14.2
}

programstatus {
	nagios_pid=42
}

contactstatus {
	contact_name=nobody
}

hoststatus {
	host_name=test
	current_state=0
}
`
	_, stats, err := p.ParseRuntimeState(strings.NewReader(content), g)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SkippedBlocks)
	assert.Equal(t, 1, stats.StatusBlocks)
	assert.Equal(t, "0", mustGet(t, g, "host", "test").Status.Value("current_state"))
}

func TestParseRuntimeState_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
		line    int
	}{
		{"unterminated block", "hoststatus {\n\thost_name=test\n", errors.ErrCodeUnexpectedEOF, 2},
		{"missing identifier", "servicestatus {\n\thost_name=test\n}\n", errors.ErrCodeMalformedStatusBlock, 1},
		{"unknown service", "\nservicestatus {\n\thost_name=test\n\tservice_description=Load\n}\n", errors.ErrCodeUnknownObject, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := parseObjects(t, simpleObjects)
			_, _, err := NewParser(zap.NewNop()).ParseRuntimeState(strings.NewReader(tt.content), g)

			var se *errors.StatusdatError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.line, se.Line())
		})
	}
}
