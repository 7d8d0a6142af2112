package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/giffer-go/internal/infrastructure"
)

var probeCmd = &cobra.Command{
	Use:   "probe FILE FIELD...",
	Short: "Print stream properties of the first video stream",
	Long: `Query ffprobe for fields of the first video stream, e.g.

  giffer probe in.mp4 width height r_frame_rate`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices()
		if err != nil {
			return err
		}
		defer svc.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		file, fields := args[0], args[1:]
		values, err := svc.prober.Probe(ctx, file, fields...)
		if err != nil {
			var probeErr *infrastructure.ProbeError
			if errors.As(err, &probeErr) && probeErr.Output != "" {
				fmt.Fprintln(os.Stderr, probeErr.Output)
			}
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for i, field := range fields {
			fmt.Fprintf(w, "%s\t%s\n", field, values[i])
		}
		return w.Flush()
	},
}
