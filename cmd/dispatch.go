package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aouyang1/inkframe/util"
)

var dispatchHour int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the render script for every frame waking in the upcoming hour",
	Long: `dispatch runs one pass immediately, without waiting for the dispatch window.
The hour defaults to the hour the dispatch lookahead lands in; use --hour to pick one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openServices()
		if err != nil {
			return err
		}
		defer db.Close()

		hour := dispatchHour
		if hour < 0 {
			hour = svc.Dispatcher.UpcomingHour(svc.Clock.Now())
		}
		if hour > 23 {
			return fmt.Errorf("%w: %d", util.ErrInvalidHour, hour)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		logger := slog.With("pass", uuid.NewString(), "trigger", "cli")
		ctx = util.WithLogger(ctx, logger)

		results, err := svc.Dispatcher.RunHour(ctx, hour)
		for _, r := range results {
			switch {
			case r.Skipped:
				fmt.Printf("%s  skipped: %s\n", r.Code, r.Reason)
			case r.OK():
				fmt.Printf("%s  ok: %s\n", r.Code, r.Image)
			case r.Err != nil:
				fmt.Printf("%s  failed: %v\n", r.Code, r.Err)
			default:
				fmt.Printf("%s  failed: exit %d %s\n", r.Code, r.Run.ExitCode, r.Run.Stderr)
			}
		}
		if len(results) == 0 {
			fmt.Printf("no frames wake at hour %d\n", hour)
		}
		return err
	},
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchHour, "hour", -1, "hour to dispatch (0-23)")
	rootCmd.AddCommand(dispatchCmd)
}
