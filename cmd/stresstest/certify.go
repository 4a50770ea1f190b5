package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/gate"
)

func newCertifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "certify <dir>",
		Short: "Certify every competency definition in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := competency.NewLoader(args[0])
			if err != nil {
				return fmt.Errorf("loading competencies: %w", err)
			}

			out := cmd.OutOrStdout()
			blocked := 0
			for _, p := range loader.Problems() {
				fmt.Fprintf(out, "INVALID  %s: %v\n", p.Path, p.Err)
				blocked++
			}

			g := gate.New(nil)
			for _, def := range loader.All() {
				cert, err := g.Certify(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("certifying %s: %w", def.ID, err)
				}
				if cert.Allowed {
					fmt.Fprintf(out, "ALLOWED  %s (%s)\n", def.ID, cert.Fingerprint[:12])
					continue
				}
				blocked++
				fmt.Fprintf(out, "BLOCKED  %s\n", def.ID)
				for _, f := range cert.Report.Failures() {
					fmt.Fprintf(out, "         %s: expected %d%%, got %d%% %s\n", f.Label, f.ExpectedPercent, f.ActualPercent, f.Error)
				}
			}

			if blocked > 0 {
				return fmt.Errorf("%d definition(s) blocked", blocked)
			}
			return nil
		},
	}
}
