package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Icinga/icingaweb2-sub007/internal/query"
)

// defaultColumns are shown when --columns is not given
var defaultColumns = map[string][]string{
	"hosts":    {"host_name", "host_state", "host_handled", "host_output"},
	"services": {"host_name", "service_description", "service_state", "service_handled", "service_output"},
}

type queryOptions struct {
	columns []string
	filter  string
	orders  []string
	groupBy []string
	limit   int
	offset  int
	count   bool
	pairs   bool
	format  string
}

func newQueryCmd(a *app) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [target]",
		Short: "Query hosts, services, groups, comments, downtimes or contacts",
		Long: `Run a query against the selected backend.

Filters use the expression syntax, e.g. "host_state = 1 AND host_name LIKE web*".
Orders take a column and an optional direction.

Examples:
  statusdat query hosts
  statusdat query services --filter "service_state != 0" --order "host_name" --order "service_state DESC"
  statusdat query hosts --columns host_name,host_address --pairs
  statusdat query services --group-by host_name --format json
  statusdat query hostgroups --columns hostgroup_name,alias --limit 10 --offset 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.columns, "columns", "c", nil, "columns to fetch")
	flags.StringVarP(&opts.filter, "filter", "f", "", "filter expression")
	flags.StringArrayVarP(&opts.orders, "order", "o", nil, "order by column, optionally followed by ASC or DESC (repeatable)")
	flags.StringSliceVar(&opts.groupBy, "group-by", nil, "group by columns and count members")
	flags.IntVar(&opts.limit, "limit", 0, "maximum rows per object type (0: configured default)")
	flags.IntVar(&opts.offset, "offset", 0, "rows to skip per object type")
	flags.BoolVar(&opts.count, "count", false, "print the number of matches only")
	flags.BoolVar(&opts.pairs, "pairs", false, "print the first column mapped to the second")
	flags.StringVar(&opts.format, "format", FormatTable, "output format (table, json, yaml)")
	return cmd
}

func (a *app) runQuery(cmd *cobra.Command, target string, opts *queryOptions) error {
	p, err := newPrinter(cmd.OutOrStdout(), opts.format)
	if err != nil {
		return err
	}
	if _, err := query.BaseTypes(target); err != nil {
		return err
	}

	columns := opts.columns
	if len(columns) == 0 && len(opts.groupBy) == 0 {
		columns = defaultColumns[target]
		if len(columns) == 0 {
			return fmt.Errorf("--columns is required for target %s", target)
		}
	}

	reader, err := a.reader(cmd.Context())
	if err != nil {
		return err
	}
	q, err := reader.Query(target, columns...)
	if err != nil {
		return err
	}

	if opts.filter != "" {
		q.WhereExpr(opts.filter)
	}
	for _, spec := range opts.orders {
		q.Order(strings.TrimSpace(spec), 0)
	}
	if cmd.Flags().Changed("limit") || cmd.Flags().Changed("offset") {
		q.Limit(opts.limit, opts.offset)
	}

	switch {
	case opts.count:
		n, err := q.Count()
		if err != nil {
			return err
		}
		if opts.format == FormatTable {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		}
		return p.encode(map[string]int{"count": n})

	case len(opts.groupBy) > 0:
		groups, err := q.GroupByColumns(opts.groupBy...).FetchGroups()
		if err != nil {
			return err
		}
		return p.aggregates(opts.groupBy, groups)

	case opts.pairs:
		pairs, err := q.FetchPairs()
		if err != nil {
			return err
		}
		return p.pairs([2]string{columns[0], columns[len(columns)-1]}, pairs)

	default:
		list, err := q.FetchAll()
		if err != nil {
			return err
		}
		return p.rows(columns, list.Rows())
	}
}
