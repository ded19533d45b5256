package query

import (
	"sort"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
)

var targets = map[string][]string{
	"hosts":         {"host"},
	"services":      {"service"},
	"downtimes":     {"downtime"},
	"groups":        {"hostgroup", "servicegroup"},
	"hostgroups":    {"hostgroup"},
	"servicegroups": {"servicegroup"},
	"comments":      {"comment"},
	"contacts":      {"contact"},
	"contactgroups": {"contactgroup"},
}

// BaseTypes resolves a target name to the object types it covers
func BaseTypes(target string) ([]string, error) {
	types, ok := targets[target]
	if !ok {
		return nil, errors.UnknownTarget(target)
	}
	out := make([]string, len(types))
	copy(out, types)
	return out, nil
}

// Targets returns the known target names, sorted
func Targets() []string {
	out := make([]string, 0, len(targets))
	for name := range targets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
