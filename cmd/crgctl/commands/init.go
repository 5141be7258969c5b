package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/crgctl/internal/config"
)

func initCmd() *cobra.Command {
	var kind string
	var force bool
	cmd := &cobra.Command{
		Use:         "init <path>",
		Short:       "Write a config template",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skip-config": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "bypass", "template kind: bypass|calibration")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
