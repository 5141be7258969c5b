package commands

import (
	"github.com/spf13/cobra"

	"github.com/danmuck/crgctl/internal/clock"
	"github.com/danmuck/crgctl/internal/config"
	"github.com/danmuck/crgctl/internal/crg"
	"github.com/danmuck/crgctl/internal/observability"
)

type rootOptions struct {
	configPath      string
	withCalibration bool
	sysClockHz      float64

	cfg crg.Config
}

func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "crgctl",
		Short:         "Clock/reset bring-up sequencer model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("crgctl")
			return opts.resolve(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML config file (defaults built in)")
	root.PersistentFlags().BoolVar(&opts.withCalibration, "with-calibration", false, "instantiate the calibration subsystem")
	root.PersistentFlags().Float64Var(&opts.sysClockHz, "sys-clk-hz", 0, "target system clock frequency in Hz")

	root.AddCommand(
		runCmd(opts),
		domainsCmd(opts),
		checkCmd(opts),
		initCmd(),
		serveCmd(opts),
	)
	return root
}

func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if cmd.Annotations["skip-config"] == "true" {
		return nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("with-calibration") {
		cfg.WithCalibration = o.withCalibration
	}
	if flags.Changed("sys-clk-hz") {
		cfg.SystemClockHz = clock.Hz(o.sysClockHz)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}
