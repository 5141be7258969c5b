package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/crgctl/internal/crg"
)

func checkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := crg.New(opts.cfg); err != nil {
				return err
			}
			path := opts.configPath
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %s config at %s\n", opts.cfg.Name, path)
			return nil
		},
	}
}
