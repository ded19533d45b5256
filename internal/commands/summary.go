package commands

import (
	"github.com/spf13/cobra"

	"github.com/Icinga/icingaweb2-sub007/internal/query"
	"github.com/Icinga/icingaweb2-sub007/internal/service"
	"github.com/Icinga/icingaweb2-sub007/internal/summary"
)

var hostCounters = []string{
	summary.HostsUp,
	summary.HostsDownHandled,
	summary.HostsDownUnhandled,
	summary.HostsUnreachableHandled,
	summary.HostsUnreachableUnhandled,
	summary.HostsPending,
}

var serviceCounters = []string{
	summary.ServicesOK,
	summary.ServicesWarningHandled,
	summary.ServicesWarningUnhandled,
	summary.ServicesCriticalHandled,
	summary.ServicesCriticalUnhandled,
	summary.ServicesUnknownHandled,
	summary.ServicesUnknownUnhandled,
	summary.ServicesPending,
}

func newSummaryCmd(a *app) *cobra.Command {
	var (
		groups bool
		filter string
		format string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count hosts and services by state",
		Long: `Count hosts and services by state. Problem states are split into
handled (acknowledged or in downtime) and unhandled.

Examples:
  statusdat summary
  statusdat summary --filter "host_name LIKE web*"
  statusdat summary --groups --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			reader, err := a.reader(cmd.Context())
			if err != nil {
				return err
			}

			if groups {
				aggs, err := groupSummary(reader, filter)
				if err != nil {
					return err
				}
				return p.aggregates([]string{"type", "group", "alias"}, aggs)
			}

			agg, err := statusSummary(reader, filter)
			if err != nil {
				return err
			}
			return p.counters(agg, append(append([]string(nil), hostCounters...), serviceCounters...))
		},
	}

	cmd.Flags().BoolVar(&groups, "groups", false, "summarize per host and service group")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "filter expression applied to the counted objects")
	cmd.Flags().StringVar(&format, "format", FormatTable, "output format (table, json, yaml)")
	return cmd
}

// statusSummary merges the host and service summaries into one aggregate
func statusSummary(reader *service.Reader, filter string) (query.Aggregate, error) {
	merged := query.Aggregate{Counters: make(map[string]int)}
	for _, target := range []string{"hosts", "services"} {
		q, err := reader.Query(target)
		if err != nil {
			return merged, err
		}
		if filter != "" {
			q.WhereExpr(filter)
		}
		aggs, err := q.GroupByFunc(summary.StatusSummary).FetchGroups()
		if err != nil {
			return merged, err
		}
		for _, agg := range aggs {
			merged.Count += agg.Count
			for name, n := range agg.Counters {
				merged.Counters[name] += n
			}
		}
	}
	return merged, nil
}

func groupSummary(reader *service.Reader, filter string) ([]query.Aggregate, error) {
	q, err := reader.Query("groups")
	if err != nil {
		return nil, err
	}
	if filter != "" {
		q.WhereExpr(filter)
	}
	return q.GroupByFunc(summary.GroupSummary).FetchGroups()
}
