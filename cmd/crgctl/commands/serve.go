package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/crgctl/internal/crg"
	"github.com/danmuck/crgctl/internal/observability"
	"github.com/danmuck/crgctl/internal/server"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	var corsOrigins []string
	var slowdown float64
	var resetEvery time.Duration
	var resetHold time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run free-running clocks and expose status and metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sys, err := crg.New(opts.cfg)
			if err != nil {
				return err
			}
			observability.RegisterMetrics()
			clocks, stopClocks := sys.TickerClocks(slowdown)
			defer stopClocks()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sys.Run(ctx, clocks) })
			if addr != "" {
				srv := server.New(sys, addr, corsOrigins)
				g.Go(func() error { return srv.Serve(ctx) })
			}
			if resetEvery > 0 {
				g.Go(func() error { return pulseReset(ctx, sys, resetEvery, resetHold) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9464", "status and metrics listen address (empty disables)")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origins for the status API")
	cmd.Flags().Float64Var(&slowdown, "slowdown", 1e6, "wall-clock stretch factor applied to every clock period")
	cmd.Flags().DurationVar(&resetEvery, "reset-every", 0, "pulse the external reset at this interval (0 disables)")
	cmd.Flags().DurationVar(&resetHold, "reset-hold", 50*time.Millisecond, "external reset pulse width")
	return cmd
}

func pulseReset(ctx context.Context, sys *crg.System, every, hold time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			sys.ReleaseReset()
			return nil
		case <-t.C:
		}
		sys.AssertReset()
		select {
		case <-ctx.Done():
			sys.ReleaseReset()
			return nil
		case <-time.After(hold):
		}
		sys.ReleaseReset()
	}
}
