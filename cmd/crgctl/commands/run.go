package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danmuck/crgctl/internal/crg"
)

func runCmd(opts *rootOptions) *cobra.Command {
	var maxEdges int
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate bring-up until the primary domain leaves reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := crg.New(opts.cfg)
			if err != nil {
				return err
			}
			res, err := sys.RunUntilReleased(cmd.Context(), maxEdges)
			out := cmd.OutOrStdout()
			if !quiet {
				printTimeline(out, res)
			}
			printSummary(out, sys, res)
			return err
		},
	}
	cmd.Flags().IntVar(&maxEdges, "max-edges", 1_000_000, "give up after this many clock edges")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	return cmd
}

func printTimeline(w io.Writer, res crg.RunResult) {
	for _, tr := range res.Transitions {
		fmt.Fprintf(w, "%-16s -> %-16s bringup=%-6d primary=%d\n",
			tr.From, tr.To, tr.BringUpTicks, tr.PrimaryTicks)
	}
}

func printSummary(w io.Writer, sys *crg.System, res crg.RunResult) {
	fmt.Fprintf(w, "state=%s calibration=%t edges=%d elapsed=%.3fus bringup_ticks=%d primary_ticks=%d\n",
		res.State, sys.CalibrationPresent(), res.Edges, float64(res.ElapsedPS)/1e6,
		res.BringUpTicks, res.PrimaryTicks)
}
