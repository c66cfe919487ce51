package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagekit/internal/config"
)

var bootCmd = &cobra.Command{
	Use:     "boot <page.html>",
	Aliases: []string{"b"},
	Short:   "Boot the configured components on a page",
	Long: `Parse a page, boot the critical components, wait for them to settle, then
boot the secondary components and print every instance that was created.

Examples:
  pagekit boot index.html                 # Table of instances
  pagekit boot index.html -o json         # Output as JSON
  pagekit boot index.html --persist       # Also simulate a back/forward cache restore
  pagekit boot index.html --render        # Print the page after boot`,
	Args: cobra.ExactArgs(1),
	RunE: runBoot,
}

var (
	bootFlags   *StandardFlags
	bootTimeout time.Duration
	bootPersist bool
	bootRender  bool
)

func init() {
	rootCmd.AddCommand(bootCmd)

	bootFlags = AddStandardFlags(bootCmd, "output")
	bootCmd.Flags().DurationVar(&bootTimeout, "timeout", 10*time.Second, "Give up on unsettled components after this long")
	bootCmd.Flags().BoolVar(&bootPersist, "persist", false, "Simulate a back/forward cache restore after boot")
	bootCmd.Flags().BoolVar(&bootRender, "render", false, "Print the page HTML after boot")
}

// bootReport is the structured output of boot.
type bootReport struct {
	Page      string        `json:"page" yaml:"page"`
	Critical  int           `json:"critical" yaml:"critical"`
	Secondary int           `json:"secondary" yaml:"secondary"`
	Failed    int           `json:"failed" yaml:"failed"`
	Recovered int           `json:"recovered,omitempty" yaml:"recovered,omitempty"`
	Duration  string        `json:"duration" yaml:"duration"`
	Instances []instanceRow `json:"instances" yaml:"instances"`
}

func runBoot(cmd *cobra.Command, args []string) error {
	if err := bootFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := newSession(cfg, args[0], cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), bootTimeout)
	defer cancel()

	res := s.boot(ctx)
	report := bootReport{
		Page:      args[0],
		Critical:  len(res.Critical),
		Secondary: len(res.Secondary),
		Failed:    res.Failed,
		Duration:  res.Duration.Round(time.Microsecond).String(),
	}

	if bootPersist {
		// A restored page keeps its markup but loses its script wiring
		s.manager.Document().ClearListeners()
		report.Recovered = s.manager.ReinitializeAfterCacheRestore(ctx)
	}

	report.Instances = s.rows(res)

	out := cmd.OutOrStdout()
	if err := writeBootReport(out, report, bootFlags.OutputFormat); err != nil {
		return err
	}
	if bootRender {
		if err := s.manager.Document().Render(out); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func writeBootReport(w io.Writer, report bootReport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	default:
		return writeBootTable(w, report)
	}
}

func writeInstanceTable(w io.Writer, rows []instanceRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATE\tGROUP\tSELECTOR")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.ID, row.Kind, row.State, row.Group, row.Selector)
	}
	return tw.Flush()
}

func writeBootTable(w io.Writer, report bootReport) error {
	if err := writeInstanceTable(w, report.Instances); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d critical, %d secondary, %d failed in %s\n",
		report.Critical, report.Secondary, report.Failed, report.Duration)
	if report.Recovered > 0 {
		fmt.Fprintf(w, "%d instance(s) recovered after cache restore\n", report.Recovered)
	}
	for _, row := range report.Instances {
		if row.Error != "" {
			fmt.Fprintf(w, "  %s: %s\n", row.ID, row.Error)
		}
	}
	return nil
}
