package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/Icinga/icingaweb2-sub007/internal/query"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// printer renders command results in one of the output formats
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return &printer{out: out, format: format}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (table, json, yaml)", format)
	}
}

// encode writes data as JSON or YAML; it is only valid for those formats
func (p *printer) encode(data interface{}) error {
	if p.format == FormatYAML {
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// rows prints one line per row with the given column order
func (p *printer) rows(columns []string, rows []map[string]string) error {
	if p.format != FormatTable {
		return p.encode(rows)
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = cell(row[col])
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	return w.Flush()
}

// pairs prints a key/value map sorted by key
func (p *printer) pairs(header [2]string, pairs map[string]string) error {
	if p.format != FormatTable {
		return p.encode(pairs)
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(header[0]), strings.ToUpper(header[1]))
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", cell(k), cell(pairs[k]))
	}
	return w.Flush()
}

type aggregateOutput struct {
	Columns  map[string]string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Count    int               `json:"count" yaml:"count"`
	Counters map[string]int    `json:"counters,omitempty" yaml:"counters,omitempty"`
}

// aggregates prints grouped results. The table has the group columns, the
// member count and every counter that is set in at least one group.
func (p *printer) aggregates(columns []string, groups []query.Aggregate) error {
	if p.format != FormatTable {
		out := make([]aggregateOutput, len(groups))
		for i, g := range groups {
			out[i] = aggregateOutput{Columns: g.Columns, Count: g.Count, Counters: g.Counters}
		}
		return p.encode(out)
	}

	counterSet := make(map[string]bool)
	for _, g := range groups {
		for name := range g.Counters {
			counterSet[name] = true
		}
	}
	counters := make([]string, 0, len(counterSet))
	for name := range counterSet {
		counters = append(counters, name)
	}
	sort.Strings(counters)

	header := append(append(append([]string(nil), columns...), "count"), counters...)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(header, "\t")))
	for _, g := range groups {
		values := make([]string, 0, len(header))
		for _, col := range columns {
			values = append(values, cell(g.Columns[col]))
		}
		values = append(values, fmt.Sprint(g.Count))
		for _, name := range counters {
			values = append(values, fmt.Sprint(g.Counters[name]))
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}
	return w.Flush()
}

// counters prints a single aggregate vertically
func (p *printer) counters(agg query.Aggregate, names []string) error {
	if p.format != FormatTable {
		return p.encode(agg.Counters)
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s:\t%d\n", name, agg.Counters[name])
	}
	return w.Flush()
}

// cell keeps a value on one table line
func cell(v string) string {
	if v == "" {
		return "-"
	}
	return strings.NewReplacer("\n", `\n`, "\t", " ").Replace(v)
}
