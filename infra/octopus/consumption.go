package octopus

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/syncengine"
)

type consumptionRecord struct {
	Consumption   *float64 `json:"consumption"`
	IntervalStart string   `json:"interval_start"`
	IntervalEnd   string   `json:"interval_end"`
}

func (c *Client) consumptionPath(fuel model.Fuel) (string, error) {
	switch fuel {
	case model.FuelElectric:
		if c.account.MPAN == "" || c.account.ElectricSerial == "" {
			return "", fmt.Errorf("electricity meter not configured")
		}
		return fmt.Sprintf("/electricity-meter-points/%s/meters/%s/consumption/",
			url.PathEscape(c.account.MPAN), url.PathEscape(c.account.ElectricSerial)), nil
	case model.FuelGas:
		if c.account.MPRN == "" || c.account.GasSerial == "" {
			return "", fmt.Errorf("gas meter not configured")
		}
		return fmt.Sprintf("/gas-meter-points/%s/meters/%s/consumption/",
			url.PathEscape(c.account.MPRN), url.PathEscape(c.account.GasSerial)), nil
	}
	return "", fmt.Errorf("unknown fuel %v", fuel)
}

// Consumption fetches one page of half-hourly readings within w.
func (c *Client) Consumption(ctx context.Context, fuel model.Fuel, w syncengine.Window, pageSize int) ([]model.Sample, error) {
	op := "consumption " + fuel.String()
	path, err := c.consumptionPath(fuel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	q := windowQuery(w.From, w.To, pageSize)
	// Newest first within the window; the sync engine walks backwards from it.
	q.Set("order_by", "-period")
	var p page[consumptionRecord]
	if err := c.get(ctx, op, path, q, &p); err != nil {
		return nil, err
	}
	out := make([]model.Sample, 0, len(p.Results))
	for _, r := range p.Results {
		ts, err := parseTime(op, "interval_start", r.IntervalStart)
		if err != nil {
			return nil, err
		}
		// The meter reports gaps as null readings.
		if r.Consumption == nil {
			c.skipped(op, ts)
			continue
		}
		out = append(out, model.Sample{Timestamp: ts, Value: *r.Consumption})
	}
	return out, nil
}

// ConsumptionSource adapts Consumption to the sync engine.
func (c *Client) ConsumptionSource(fuel model.Fuel) syncengine.PagedSource[model.Sample] {
	return syncengine.SourceFunc[model.Sample](func(ctx context.Context, w syncengine.Window, pageSize int) ([]model.Sample, error) {
		return c.Consumption(ctx, fuel, w, pageSize)
	})
}
