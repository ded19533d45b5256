package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/parser"
	"github.com/Icinga/icingaweb2-sub007/internal/query"
)

const objects = `
define host {
    host_name	web1
}

define host {
    host_name	web2
}

define host {
    host_name	db1
}

define host {
    host_name	new1
}

define service {
    host_name	web1
    service_description	http
}

define service {
    host_name	web2
    service_description	http
}

define service {
    host_name	db1
    service_description	mysql
}

define hostgroup {
    hostgroup_name	web
    alias	Web Servers
    members	web1,web2
}

define servicegroup {
    servicegroup_name	http
    members	web1,http,web2,http
}
`

const status = `
hoststatus {
    host_name=web1
    has_been_checked=1
    current_state=0
}

hoststatus {
    host_name=web2
    has_been_checked=1
    current_state=1
    problem_has_been_acknowledged=1
}

hoststatus {
    host_name=db1
    has_been_checked=1
    current_state=2
}

hoststatus {
    host_name=new1
    has_been_checked=0
    current_state=0
}

servicestatus {
    host_name=web1
    service_description=http
    current_state=1
    scheduled_downtime_depth=0
}

servicestatus {
    host_name=web2
    service_description=http
    current_state=2
    scheduled_downtime_depth=1
}

servicestatus {
    host_name=db1
    service_description=mysql
    current_state=3
}
`

func graph(t *testing.T) *model.Graph {
	t.Helper()
	p := parser.NewParser(zap.NewNop())
	g, _, err := p.ParseObjects(strings.NewReader(objects))
	require.NoError(t, err)
	g, _, err = p.ParseRuntimeState(strings.NewReader(status), g)
	require.NoError(t, err)
	return g
}

func TestStatusSummary(t *testing.T) {
	g := graph(t)

	q, err := query.New(g, "hosts")
	require.NoError(t, err)
	groups, err := q.GroupByFunc(StatusSummary).FetchGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 4, groups[0].Count)
	assert.Equal(t, map[string]int{
		HostsUp:                   1,
		HostsDownHandled:          1,
		HostsUnreachableUnhandled: 1,
		HostsPending:              1,
	}, groups[0].Counters)

	q, err = query.New(g, "services")
	require.NoError(t, err)
	groups, err = q.GroupByFunc(StatusSummary).FetchGroups()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		ServicesWarningUnhandled: 1,
		ServicesCriticalHandled:  1,
		ServicesUnknownUnhandled: 1,
	}, groups[0].Counters)
}

func TestStatusSummaryRespectsFilter(t *testing.T) {
	q, err := query.New(graph(t), "hosts")
	require.NoError(t, err)
	q.WhereExpr("host_name LIKE web%").GroupByFunc(StatusSummary)

	groups, err := q.FetchGroups()
	require.NoError(t, err)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, 1, groups[0].Counters[HostsUp])
	assert.Equal(t, 1, groups[0].Counters[HostsDownHandled])
}

func TestGroupSummary(t *testing.T) {
	q, err := query.New(graph(t), "groups")
	require.NoError(t, err)
	groups, err := q.GroupByFunc(GroupSummary).FetchGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, map[string]string{"type": "hostgroup", "group": "web", "alias": "Web Servers"}, groups[0].Columns)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, map[string]int{HostsUp: 1, HostsDownHandled: 1}, groups[0].Counters)

	assert.Equal(t, "http", groups[1].Columns["group"])
	assert.Equal(t, map[string]int{ServicesWarningUnhandled: 1, ServicesCriticalHandled: 1}, groups[1].Counters)

	n, err := q.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "DOWN", HostStateName(HostDown))
	assert.Equal(t, "UNREACHABLE", HostStateName(HostUnreachable))
	assert.Equal(t, "CRITICAL", ServiceStateName(ServiceCritical))
	assert.Equal(t, "UNKNOWN", ServiceStateName(9))
}
