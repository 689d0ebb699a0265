// Package export writes reporting series as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/octowatt/core/model"
)

// Series is one named column of readings, for example "electric_daily".
type Series struct {
	Name    string         `json:"name"`
	Unit    string         `json:"unit"`
	Samples []model.Sample `json:"-"`
}

type jsonSeries struct {
	Series
	Points []jsonPoint `json:"points"`
}

type jsonPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// WriteJSON writes the series to w as a JSON array.
func WriteJSON(w io.Writer, series ...Series) error {
	out := make([]jsonSeries, 0, len(series))
	for _, s := range series {
		js := jsonSeries{Series: s, Points: make([]jsonPoint, 0, len(s.Samples))}
		for _, smp := range s.Samples {
			js.Points = append(js.Points, jsonPoint{Time: smp.Timestamp.UTC(), Value: smp.Value})
		}
		out = append(out, js)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteCSV writes one row per reading, series after series.
func WriteCSV(w io.Writer, series ...Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "timestamp", "value", "unit"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, smp := range s.Samples {
			rec := []string{
				s.Name,
				smp.Timestamp.UTC().Format(time.RFC3339),
				strconv.FormatFloat(smp.Value, 'f', -1, 64),
				s.Unit,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
