package summary

import (
	"strconv"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/query"
)

// State constants as written by the monitoring core
const (
	HostUp          = 0
	HostDown        = 1
	HostUnreachable = 2

	ServiceOK       = 0
	ServiceWarning  = 1
	ServiceCritical = 2
	ServiceUnknown  = 3
)

// Counter names of a summary aggregate
const (
	HostsUp                   = "hosts_up"
	HostsDownHandled          = "hosts_down_handled"
	HostsDownUnhandled        = "hosts_down_unhandled"
	HostsUnreachableHandled   = "hosts_unreachable_handled"
	HostsUnreachableUnhandled = "hosts_unreachable_unhandled"
	HostsPending              = "hosts_pending"

	ServicesOK                = "services_ok"
	ServicesWarningHandled    = "services_warning_handled"
	ServicesWarningUnhandled  = "services_warning_unhandled"
	ServicesCriticalHandled   = "services_critical_handled"
	ServicesCriticalUnhandled = "services_critical_unhandled"
	ServicesUnknownHandled    = "services_unknown_handled"
	ServicesUnknownUnhandled  = "services_unknown_unhandled"
	ServicesPending           = "services_pending"
)

// HostStateName returns the display name for a host state
func HostStateName(state int) string {
	switch state {
	case HostUp:
		return "UP"
	case HostDown:
		return "DOWN"
	case HostUnreachable:
		return "UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

// ServiceStateName returns the display name for a service state
func ServiceStateName(state int) string {
	switch state {
	case ServiceOK:
		return "OK"
	case ServiceWarning:
		return "WARNING"
	case ServiceCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// StatusSummary counts the hosts and services of a query by state. Problem
// states are split into handled (acknowledged or in downtime) and unhandled.
// The result is a single aggregate.
func StatusSummary(src query.Source, idx query.Indices) []query.Aggregate {
	agg := newAggregate(nil)
	for _, ti := range idx {
		for _, name := range ti.Names {
			rec, ok := src.Get(ti.Type, name)
			if !ok {
				continue
			}
			count(agg.Counters, rec)
			agg.Count++
		}
	}
	return []query.Aggregate{agg}
}

// GroupSummary counts the states of the members of every group the query
// matched, one aggregate per group.
func GroupSummary(src query.Source, idx query.Indices) []query.Aggregate {
	var out []query.Aggregate
	for _, ti := range idx {
		for _, name := range ti.Names {
			group, ok := src.Get(ti.Type, name)
			if !ok {
				continue
			}
			agg := newAggregate(map[string]string{
				"type":  ti.Type,
				"group": group.Name,
				"alias": attr(group, "alias"),
			})
			for _, handles := range group.Links {
				for _, h := range handles {
					member, ok := src.Resolve(h)
					if !ok {
						continue
					}
					count(agg.Counters, member)
					agg.Count++
				}
			}
			out = append(out, agg)
		}
	}
	return out
}

func newAggregate(columns map[string]string) query.Aggregate {
	return query.Aggregate{Columns: columns, Counters: make(map[string]int)}
}

func count(counters map[string]int, rec *model.Record) {
	switch model.Classify(rec.Type) {
	case model.KindHost:
		counters[hostCounter(rec.Status)]++
	case model.KindService:
		counters[serviceCounter(rec.Status)]++
	}
}

func hostCounter(s *model.RuntimeState) string {
	state, ok := checkedState(s)
	if !ok {
		return HostsPending
	}
	switch state {
	case HostUp:
		return HostsUp
	case HostDown:
		return split(s, HostsDownHandled, HostsDownUnhandled)
	default:
		return split(s, HostsUnreachableHandled, HostsUnreachableUnhandled)
	}
}

func serviceCounter(s *model.RuntimeState) string {
	state, ok := checkedState(s)
	if !ok {
		return ServicesPending
	}
	switch state {
	case ServiceOK:
		return ServicesOK
	case ServiceWarning:
		return split(s, ServicesWarningHandled, ServicesWarningUnhandled)
	case ServiceCritical:
		return split(s, ServicesCriticalHandled, ServicesCriticalUnhandled)
	default:
		return split(s, ServicesUnknownHandled, ServicesUnknownUnhandled)
	}
}

// checkedState returns the current state unless the object has no runtime
// state yet or has never been checked
func checkedState(s *model.RuntimeState) (int, bool) {
	if s == nil {
		return 0, false
	}
	if s.Value("has_been_checked") == "0" {
		return 0, false
	}
	v, err := s.Get("current_state")
	if err != nil {
		return 0, false
	}
	state, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return state, true
}

func split(s *model.RuntimeState, handled, unhandled string) string {
	if truthy(s.Value("problem_has_been_acknowledged")) || truthy(s.Value("scheduled_downtime_depth")) {
		return handled
	}
	return unhandled
}

func truthy(v string) bool {
	return v != "" && v != "0"
}

func attr(rec *model.Record, key string) string {
	v, _ := rec.Attr(key)
	return v
}
