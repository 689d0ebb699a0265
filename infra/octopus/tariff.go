package octopus

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/syncengine"
)

// DefaultProduct is the Agile product code used when none is configured.
const DefaultProduct = "AGILE-18-02-21"

type unitRateRecord struct {
	ValueExcVAT *float64 `json:"value_exc_vat"`
	ValueIncVAT *float64 `json:"value_inc_vat"`
	ValidFrom   string   `json:"valid_from"`
	ValidTo     *string  `json:"valid_to"`
}

// TariffCode returns the single-register electricity tariff code of product in
// region.
func TariffCode(product, region string) string {
	return fmt.Sprintf("E-1R-%s-%s", product, region)
}

// UnitRates fetches one page of standard unit rates within w.
func (c *Client) UnitRates(ctx context.Context, product, region string, w syncengine.Window, pageSize int) ([]model.TariffRate, error) {
	op := "unit rates " + TariffCode(product, region)
	path := fmt.Sprintf("/products/%s/electricity-tariffs/%s/standard-unit-rates/",
		url.PathEscape(product), url.PathEscape(TariffCode(product, region)))
	var p page[unitRateRecord]
	if err := c.get(ctx, op, path, windowQuery(w.From, w.To, pageSize), &p); err != nil {
		return nil, err
	}
	out := make([]model.TariffRate, 0, len(p.Results))
	for _, r := range p.Results {
		from, err := parseTime(op, "valid_from", r.ValidFrom)
		if err != nil {
			return nil, err
		}
		rate := model.TariffRate{ValidFrom: from}
		if r.ValidTo != nil && *r.ValidTo != "" {
			if rate.ValidTo, err = parseTime(op, "valid_to", *r.ValidTo); err != nil {
				return nil, err
			}
		}
		if r.ValueIncVAT == nil {
			c.skipped(op, from)
			continue
		}
		rate.UnitPrice = *r.ValueIncVAT
		out = append(out, rate)
	}
	return out, nil
}

// TariffSource adapts UnitRates to the sync engine. region must already be
// normalized.
func (c *Client) TariffSource(product, region string) syncengine.PagedSource[model.TariffRate] {
	return syncengine.SourceFunc[model.TariffRate](func(ctx context.Context, w syncengine.Window, pageSize int) ([]model.TariffRate, error) {
		return c.UnitRates(ctx, product, region, w, pageSize)
	})
}

func (c *Client) skipped(op string, at time.Time) {
	c.log.Debugw("skipping record without value", map[string]any{"op": op, "at": at})
}
