package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/octowatt/app"
	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/logger"
	"github.com/kilianp07/octowatt/core/model"
)

// Updater runs update cycles on behalf of the handlers. *app.Service
// implements it.
type Updater interface {
	Refresh(ctx context.Context, maxAge time.Duration) (*app.Snapshot, error)
	Current() *app.Snapshot
}

type handler struct {
	svc    Updater
	maxAge time.Duration
	log    logger.Logger
}

type startPageBody struct {
	Cycle           string     `json:"cycle"`
	MissingElectric int        `json:"missing_electric"`
	MissingGas      int        `json:"missing_gas"`
	RecentElectric  *time.Time `json:"recent_electric"`
	RecentGas       *time.Time `json:"recent_gas"`
}

type startTime struct {
	Appliance string     `json:"appliance"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Cost      *float64   `json:"cost,omitempty"`
	Error     string     `json:"error,omitempty"`
	Kind      string     `json:"kind,omitempty"`
}

type startTimesBody struct {
	Cycle      string      `json:"cycle"`
	ComputedAt time.Time   `json:"computed_at"`
	Region     string      `json:"region"`
	Appliances []startTime `json:"appliances"`
}

type point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type fuelAggregates struct {
	Unit    string  `json:"unit"`
	Daily   []point `json:"daily"`
	Weekly  []point `json:"weekly"`
	Rolling []point `json:"rolling"`
	// Window is the rolling window in half-hour slots.
	Window  int          `json:"window"`
	Seasons []seasonLoad `json:"seasons,omitempty"`
	Cost    *gasCost     `json:"cost,omitempty"`
}

// seasonLoad is the hourly load of one heating season in kWh, largest first.
type seasonLoad struct {
	Label  string     `json:"label"`
	From   *time.Time `json:"from"`
	To     time.Time  `json:"to"`
	Total  float64    `json:"total"`
	Peak   float64    `json:"peak"`
	Values []float64  `json:"values"`
}

type gasCost struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Volume float64   `json:"volume"`
	KWh    float64   `json:"kwh"`
	Pence  float64   `json:"pence"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// startPage reports gaps and the most recent reading per fuel.
func (h *handler) startPage(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.refresh(w, r)
	if !ok {
		return
	}
	out := startPageBody{Cycle: snap.ID, MissingElectric: snap.Electric.Count()}
	if snap.Electric.Records > 0 {
		out.RecentElectric = &snap.Electric.Latest
	}
	if snap.Gas != nil {
		out.MissingGas = snap.Gas.Count()
		if snap.Gas.Records > 0 {
			out.RecentGas = &snap.Gas.Latest
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) startTimes(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.refresh(w, r)
	if !ok {
		return
	}
	out := startTimesBody{Cycle: snap.ID, ComputedAt: snap.ComputedAt, Region: snap.Region, Appliances: []startTime{}}
	for _, res := range snap.StartTimes {
		st := startTime{Appliance: res.Appliance}
		if res.Err != nil {
			st.Error, st.Kind = res.Err.Error(), kindOf(res.Err)
		} else {
			win := res.Window
			st.Start, st.End, st.Cost = &win.Start, &win.End, &win.Cost
		}
		out.Appliances = append(out.Appliances, st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) consumption(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.refresh(w, r)
	if !ok {
		return
	}
	out := map[string]fuelAggregates{}
	for fuel, agg := range snap.Aggregates {
		fa := fuelAggregates{
			Unit:    "kWh",
			Daily:   points(agg.Daily),
			Weekly:  points(agg.Weekly),
			Rolling: points(agg.Rolling),
			Window:  agg.Window,
		}
		for _, d := range agg.Seasons {
			sl := seasonLoad{Label: d.Label, To: d.To, Total: d.Total(), Peak: d.Peak(), Values: d.Values}
			if !d.From.IsZero() {
				from := d.From
				sl.From = &from
			}
			fa.Seasons = append(fa.Seasons, sl)
		}
		if c := agg.Cost; c != nil {
			fa.Cost = &gasCost{From: c.From, To: c.To, Volume: c.Volume, KWh: c.KWh, Pence: c.Pence}
		}
		out[fuel.String()] = fa
	}
	writeJSON(w, http.StatusOK, out)
}

// health never runs a cycle.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if snap := h.svc.Current(); snap != nil {
		body["cycle"] = snap.ID
		body["computed_at"] = snap.ComputedAt
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) (*app.Snapshot, bool) {
	snap, err := h.svc.Refresh(r.Context(), h.maxAge)
	if err != nil {
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, err)
		return nil, false
	}
	return snap, true
}

func points(s []model.Sample) []point {
	out := make([]point, len(s))
	for i, smp := range s {
		out[i] = point{Time: smp.Timestamp, Value: smp.Value}
	}
	return out
}

// statusFor maps an update error to the HTTP status returned to clients.
func statusFor(err error) int {
	if k, ok := failure.KindOf(err); ok {
		switch k {
		case failure.KindTransport, failure.KindMalformedPage:
			return http.StatusBadGateway
		case failure.KindCacheUnavailable:
			return http.StatusServiceUnavailable
		case failure.KindInsufficientHorizon:
			return http.StatusUnprocessableEntity
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func kindOf(err error) string {
	if k, ok := failure.KindOf(err); ok {
		return k.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "internal"
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error(), Kind: kindOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
