package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/octowatt/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one update cycle and print the series summary",
	RunE:  runSync,
}

var startTimesCmd = &cobra.Command{
	Use:   "starttimes",
	Short: "Run one update cycle and print the cheapest appliance start times",
	RunE:  runStartTimes,
}

func init() {
	rootCmd.AddCommand(syncCmd, startTimesCmd)
}

// cycle runs a single update with the CLI lifecycle around it.
func cycle(fn func(w io.Writer, snap *app.Snapshot) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, svc, err := setup()
		if err != nil {
			return err
		}
		defer closeService(svc)
		snap, err := svc.Update(ctx)
		if err != nil {
			return err
		}
		return fn(cmd.OutOrStdout(), snap)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	return cycle(printSummary)(cmd, args)
}

func runStartTimes(cmd *cobra.Command, args []string) error {
	return cycle(printStartTimes)(cmd, args)
}

func printSummary(w io.Writer, snap *app.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SERIES\tRECORDS\tMISSING\tFIRST\tLATEST\n")
	for _, rep := range snap.Reports() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", rep.Series, rep.Records, rep.Count(), stamp(rep.First), stamp(rep.Latest))
	}
	fmt.Fprintf(tw, "%s\t%d\t-\t-\t%s\n", app.TariffSeries, snap.TariffRecords, stamp(snap.TariffLatest))
	return tw.Flush()
}

func printStartTimes(w io.Writer, snap *app.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "APPLIANCE\tSTART\tEND\tCOST (p)\n")
	for _, r := range snap.StartTimes {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%v\n", r.Appliance, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", r.Appliance, stamp(r.Window.Start), stamp(r.Window.End), r.Window.Cost)
	}
	return tw.Flush()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
