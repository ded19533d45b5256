package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Icinga/icingaweb2-sub007/internal/service"
)

type parseReport struct {
	Backend       string         `json:"backend" yaml:"backend"`
	SnapshotID    string         `json:"snapshot_id" yaml:"snapshot_id"`
	ObjectsFile   string         `json:"objects_file" yaml:"objects_file"`
	StatusFile    string         `json:"status_file,omitempty" yaml:"status_file,omitempty"`
	Records       map[string]int `json:"records" yaml:"records"`
	ObjectLines   int            `json:"object_lines" yaml:"object_lines"`
	Objects       int            `json:"objects" yaml:"objects"`
	Deferred      int            `json:"deferred_references" yaml:"deferred_references"`
	Dropped       int            `json:"dropped_references" yaml:"dropped_references"`
	StatusLines   int            `json:"status_lines" yaml:"status_lines"`
	StatusBlocks  int            `json:"status_blocks" yaml:"status_blocks"`
	SkippedBlocks int            `json:"skipped_blocks" yaml:"skipped_blocks"`
}

func newParseCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse every backend and report what was read",
		Long: `Parse the objects and status files of every configured backend and
print per backend statistics. Fails on the first backend that cannot be read.

Examples:
  statusdat parse --objects /var/cache/nagios/objects.cache --status /var/cache/nagios/status.dat
  statusdat parse --config statusdat.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			reg, err := a.openRegistry(cmd.Context(), nil)
			if err != nil {
				return err
			}

			reports := make([]parseReport, 0, len(reg.Names()))
			for _, reader := range reg.Readers() {
				if snap := reader.Snapshot(); snap != nil {
					reports = append(reports, newParseReport(reader, snap))
				}
			}
			if format != FormatTable {
				return p.encode(reports)
			}
			return printParseReports(cmd, reports)
		},
	}
	cmd.Flags().StringVar(&format, "format", FormatTable, "output format (table, json, yaml)")
	return cmd
}

func newParseReport(reader *service.Reader, snap *service.Snapshot) parseReport {
	cfg := reader.Config()
	report := parseReport{
		Backend:       reader.Name(),
		SnapshotID:    snap.ID.String(),
		ObjectsFile:   cfg.ObjectsFile,
		StatusFile:    cfg.StatusFile,
		Records:       make(map[string]int),
		ObjectLines:   snap.ObjectStats.Lines,
		Objects:       snap.ObjectStats.Objects,
		Deferred:      snap.ObjectStats.Graph.Deferred,
		Dropped:       snap.ObjectStats.Graph.Dropped,
		StatusLines:   snap.StatusStats.Lines,
		StatusBlocks:  snap.StatusStats.StatusBlocks,
		SkippedBlocks: snap.StatusStats.SkippedBlocks,
	}
	for _, typeName := range snap.Graph.Types() {
		report.Records[typeName] = snap.Graph.Len(typeName)
	}
	return report
}

func printParseReports(cmd *cobra.Command, reports []parseReport) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Backend:\t%s\n", r.Backend)
		fmt.Fprintf(w, "Snapshot:\t%s\n", r.SnapshotID)
		fmt.Fprintf(w, "Objects file:\t%s (%d lines, %d definitions)\n", r.ObjectsFile, r.ObjectLines, r.Objects)
		if r.StatusFile != "" {
			fmt.Fprintf(w, "Status file:\t%s (%d lines, %d blocks, %d skipped)\n", r.StatusFile, r.StatusLines, r.StatusBlocks, r.SkippedBlocks)
		}
		fmt.Fprintf(w, "References:\t%d deferred, %d dropped\n", r.Deferred, r.Dropped)
		for _, typeName := range sortedKeys(r.Records) {
			fmt.Fprintf(w, "  %s:\t%d\n", typeName, r.Records[typeName])
		}
	}
	return w.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
