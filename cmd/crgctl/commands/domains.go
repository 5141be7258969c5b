package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/crgctl/internal/crg"
)

func domainsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Print the derived clock domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := crg.New(opts.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range sys.Domains() {
				role := ""
				switch d.Name {
				case opts.cfg.BringUpDomain:
					role = "bringup"
				case opts.cfg.PrimaryDomain:
					role = "primary"
				case opts.cfg.HandoffDomain:
					role = "handoff"
				}
				reset := "reset"
				if d.ResetLess {
					reset = "reset-less"
				} else if d.SyncReset {
					reset = "lock-synchronized"
				}
				fmt.Fprintf(out, "%-8s %-12s %-18s %s\n", d.Name, d.Frequency, reset, role)
			}
			fmt.Fprintf(out, "calibration_present=%t\n", sys.CalibrationPresent())
			return nil
		},
	}
}
