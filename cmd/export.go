package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/octowatt/app"
	"github.com/kilianp07/octowatt/core/aggregate"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/pkg/export"
)

var (
	exportPeriod string
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run one update cycle and write daily or weekly consumption",
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := aggregate.ParsePeriod(exportPeriod)
		if err != nil {
			return err
		}
		if period == aggregate.Hourly {
			return fmt.Errorf("export supports daily or weekly, not %s", period)
		}
		if exportFormat != "csv" && exportFormat != "json" {
			return fmt.Errorf("unknown format %q", exportFormat)
		}
		return cycle(func(w io.Writer, snap *app.Snapshot) error {
			series := exportSeries(snap, period)
			if exportOutput != "" && exportOutput != "-" {
				return exportFile(exportOutput, exportFormat, series)
			}
			return writeExport(w, exportFormat, series)
		})(cmd, args)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportPeriod, "period", "p", "daily", "bucket size: daily or weekly")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func exportSeries(snap *app.Snapshot, period aggregate.Period) []export.Series {
	var out []export.Series
	for _, fuel := range []model.Fuel{model.FuelElectric, model.FuelGas} {
		agg, ok := snap.Aggregates[fuel]
		if !ok {
			continue
		}
		samples := agg.Daily
		if period == aggregate.Weekly {
			samples = agg.Weekly
		}
		out = append(out, export.Series{Name: fuel.String() + "_" + period.String(), Unit: "kWh", Samples: samples})
	}
	return out
}

// exportFile writes series to path. A failed close is reported since it can
// leave the file truncated.
func exportFile(path, format string, series []export.Series) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return writeExport(f, format, series)
}

func writeExport(w io.Writer, format string, series []export.Series) error {
	if format == "json" {
		return export.WriteJSON(w, series...)
	}
	return export.WriteCSV(w, series...)
}
