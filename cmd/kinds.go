package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagekit/internal/config"
	"github.com/conneroisu/pagekit/internal/widgets"
)

var kindsCmd = &cobra.Command{
	Use:     "kinds",
	Aliases: []string{"k"},
	Short:   "List the widget kinds that can be loaded",
	Long: `List every widget kind pagekit can load, with the boot group and
selectors the current configuration uses it for.

Examples:
  pagekit kinds              # Table
  pagekit kinds -o yaml      # Output as YAML`,
	Args: cobra.NoArgs,
	RunE: runKinds,
}

var kindsFlags *StandardFlags

func init() {
	rootCmd.AddCommand(kindsCmd)

	kindsFlags = AddStandardFlags(kindsCmd, "output")
}

type kindRow struct {
	Kind      string   `json:"kind" yaml:"kind"`
	Name      string   `json:"name" yaml:"name"`
	Group     string   `json:"group" yaml:"group"`
	Selectors []string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
}

func runKinds(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeKinds(cmd.OutOrStdout(), kindRows(cfg), kindsFlags.OutputFormat)
}

func kindNames() []string {
	names := make([]string, 0, len(widgets.Factories))
	for kind := range widgets.Factories {
		names = append(names, kind.String())
	}
	sort.Strings(names)
	return names
}

func kindRows(cfg *config.Config) []kindRow {
	title := cases.Title(language.English)
	rows := make([]kindRow, 0, len(widgets.Factories))
	for _, kind := range kindNames() {
		row := kindRow{
			Kind:  kind,
			Name:  title.String(strings.ReplaceAll(kind, "-", " ")),
			Group: "-",
		}
		for _, spec := range cfg.Components.Secondary {
			if spec.Kind == kind {
				row.Group = "secondary"
				row.Selectors = append(row.Selectors, spec.Selector)
			}
		}
		var critical []string
		for _, spec := range cfg.Components.Critical {
			if spec.Kind == kind {
				critical = append(critical, spec.Selector)
			}
		}
		if len(critical) > 0 {
			row.Group = "critical"
			row.Selectors = append(critical, row.Selectors...)
		}
		rows = append(rows, row)
	}
	return rows
}

func writeKinds(w io.Writer, rows []kindRow, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tGROUP\tSELECTORS")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Kind, row.Name, row.Group, strings.Join(row.Selectors, ", "))
	}
	return tw.Flush()
}
