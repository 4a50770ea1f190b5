package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-arena/internal/stresstest"
)

func newRunCommand() *cobra.Command {
	var (
		xlsxPath string
		asJSON   bool
	)

	command := &cobra.Command{
		Use:   "run",
		Short: "Run the built-in scenario battery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := stresstest.Run(stresstest.DefaultScenarios())

			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encoding report: %w", err)
				}
			} else {
				printReport(out, report)
			}

			if !report.Passed() {
				return fmt.Errorf("%d scenario(s) failed", len(report.Failures()))
			}
			return nil
		},
	}

	command.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the report workbook to this path")
	command.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return command
}

func writeWorkbook(path string, report stresstest.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating workbook: %w", err)
	}
	if err := stresstest.WriteXLSX(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(w io.Writer, report stresstest.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tEXPECTED\tACTUAL\tRESULT")
	for _, s := range report.Scenarios {
		result := "pass"
		if !s.Passed {
			result = "FAIL"
			if s.Error != "" {
				result += ": " + s.Error
			}
		}
		fmt.Fprintf(tw, "%s\t%d%%\t%d%%\t%s\n", s.Label, s.ExpectedPercent, s.ActualPercent, result)
	}
	tw.Flush()
	fmt.Fprintf(w, "\noverall: %s\n", report.OverallStatus)
}
