package octopus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRegion is returned for a grid supply point outside the known set.
var ErrInvalidRegion = errors.New("invalid grid supply point")

// regions lists the 14 GB grid supply point groups.
var regions = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true, "F": true, "G": true,
	"P": true, "N": true, "J": true, "H": true, "K": true, "L": true, "M": true,
}

// MeterPoint describes an electricity meter point.
type MeterPoint struct {
	GSP          string `json:"gsp"`
	MPAN         string `json:"mpan"`
	ProfileClass int    `json:"profile_class"`
}

// ElectricityMeterPoint fetches the configured MPAN's meter point.
func (c *Client) ElectricityMeterPoint(ctx context.Context) (MeterPoint, error) {
	if c.account.MPAN == "" {
		return MeterPoint{}, fmt.Errorf("meter point: mpan not configured")
	}
	var mp MeterPoint
	path := fmt.Sprintf("/electricity-meter-points/%s/", url.PathEscape(c.account.MPAN))
	if err := c.get(ctx, "meter point", path, nil, &mp); err != nil {
		return MeterPoint{}, err
	}
	return mp, nil
}

// Region returns the normalized grid supply point of the configured MPAN.
func (c *Client) Region(ctx context.Context) (string, error) {
	mp, err := c.ElectricityMeterPoint(ctx)
	if err != nil {
		return "", err
	}
	return NormalizeRegion(mp.GSP)
}

// NormalizeRegion turns the API's GSP ("_H") into the single letter used in
// tariff codes ("H").
func NormalizeRegion(gsp string) (string, error) {
	r := strings.ToUpper(strings.TrimSpace(gsp))
	if len(r) == 2 {
		r = r[1:]
	}
	if !regions[r] {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, gsp)
	}
	return r, nil
}
