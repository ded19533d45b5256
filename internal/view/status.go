package view

import "github.com/Icinga/icingaweb2-sub007/internal/model"

var hostColumns = map[string]string{
	"host":                       "host_name",
	"host_name":                  "host_name",
	"host_display_name":          "alias",
	"host_alias":                 "alias",
	"host_address":               "address",
	"host_state":                 "status.current_state",
	"host_output":                "status.plugin_output",
	"host_long_output":           "status.long_plugin_output",
	"host_perfdata":              "status.performance_data",
	"host_last_state_change":     "status.last_state_change",
	"host_check_command":         "check_command",
	"host_last_check":            "TO_DATE(status.last_check)",
	"host_next_check":            "status.next_check",
	"host_check_latency":         "status.check_latency",
	"host_check_execution_time":  "status.check_execution_time",
	"host_active_checks_enabled": "status.active_checks_enabled",
	"host_in_downtime":           "status.scheduled_downtime_depth",
	"host_is_flapping":           "status.is_flapping",
	"host_notifications_enabled": "status.notifications_enabled",
	"host_state_type":            "status.state_type",
	"host_icon_image":            "icon_image",
	"host_action_url":            "action_url",
	"host_notes_url":             "notes_url",
	"host_acknowledged":          "status.problem_has_been_acknowledged",
	"host_groups":                "group",
	"host_services":              "services.service_description",
}

var serviceColumns = map[string]string{
	"host_address":                  "host.address",
	"host_name":                     "host.host_name",
	"host":                          "host.host_name",
	"host_state":                    "host.status.current_state",
	"host_output":                   "host.status.plugin_output",
	"host_long_output":              "host.status.long_plugin_output",
	"host_perfdata":                 "host.status.performance_data",
	"host_last_state_change":        "host.status.last_state_change",
	"host_check_command":            "host.check_command",
	"host_last_check":               "TO_DATE(host.status.last_check)",
	"host_next_check":               "host.status.next_check",
	"host_check_latency":            "host.status.check_latency",
	"host_check_execution_time":     "host.status.check_execution_time",
	"host_active_checks_enabled":    "host.status.active_checks_enabled",
	"host_in_downtime":              "host.status.scheduled_downtime_depth",
	"host_is_flapping":              "host.status.is_flapping",
	"host_notifications_enabled":    "host.status.notifications_enabled",
	"host_state_type":               "host.status.state_type",
	"host_icon_image":               "host.icon_image",
	"host_action_url":               "host.action_url",
	"host_notes_url":                "host.notes_url",
	"host_acknowledged":             "host.status.problem_has_been_acknowledged",
	"service":                       "service_description",
	"service_display_name":          "service_description",
	"service_description":           "service_description",
	"service_state":                 "status.current_state",
	"service_icon_image":            "icon_image",
	"service_output":                "status.plugin_output",
	"service_long_output":           "status.long_plugin_output",
	"service_perfdata":              "status.performance_data",
	"service_last_state_change":     "status.last_state_change",
	"service_check_command":         "check_command",
	"service_last_check":            "TO_DATE(status.last_check)",
	"service_next_check":            "status.next_check",
	"service_check_latency":         "status.check_latency",
	"service_check_execution_time":  "status.check_execution_time",
	"service_active_checks_enabled": "status.active_checks_enabled",
	"service_in_downtime":           "status.scheduled_downtime_depth",
	"service_is_flapping":           "status.is_flapping",
	"service_notifications_enabled": "status.notifications_enabled",
	"service_state_type":            "status.state_type",
	"service_action_url":            "action_url",
	"service_notes_url":             "notes_url",
	"service_acknowledged":          "status.problem_has_been_acknowledged",
	"service_groups":                "group",
}

// HostStatus maps monitoring host columns onto host records
func HostStatus() *View {
	return New("hoststatus", hostColumns, map[string]Handler{
		"host_handled":      handled(self),
		"host_last_comment": lastComment(self),
	})
}

// ServiceStatus maps monitoring service columns onto service records
func ServiceStatus() *View {
	return New("servicestatus", serviceColumns, map[string]Handler{
		"host_handled":         handled(linkedHost),
		"service_handled":      handled(self),
		"host_last_comment":    lastComment(linkedHost),
		"service_last_comment": lastComment(self),
	})
}

// ForTarget returns the status view of a query target, or Passthrough
func ForTarget(target string) *View {
	switch target {
	case "hosts":
		return HostStatus()
	case "services":
		return ServiceStatus()
	default:
		return Passthrough
	}
}

func self(_ Resolver, rec *model.Record) *model.Record {
	return rec
}

func linkedHost(res Resolver, rec *model.Record) *model.Record {
	for _, h := range rec.Links["host"] {
		if host, ok := res.Resolve(h); ok {
			return host
		}
	}
	return nil
}

// handled is "1" when the object is up/ok, acknowledged or in downtime
func handled(target func(Resolver, *model.Record) *model.Record) Handler {
	return func(res Resolver, rec *model.Record) []string {
		r := target(res, rec)
		if r == nil || r.Status == nil {
			return nil
		}
		s := r.Status
		if s.Value("current_state") == "0" ||
			truthy(s.Value("problem_has_been_acknowledged")) ||
			truthy(s.Value("scheduled_downtime_depth")) {
			return []string{"1"}
		}
		return []string{"0"}
	}
}

// lastComment yields the comment_id of the newest comment
func lastComment(target func(Resolver, *model.Record) *model.Record) Handler {
	return func(res Resolver, rec *model.Record) []string {
		r := target(res, rec)
		if r == nil {
			return nil
		}
		comments := r.Lists["comment"]
		if len(comments) == 0 {
			return nil
		}
		id, err := comments[len(comments)-1].Get("comment_id")
		if err != nil {
			return nil
		}
		return []string{id}
	}
}

func truthy(v string) bool {
	return v != "" && v != "0"
}
