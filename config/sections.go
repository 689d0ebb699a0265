package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/octowatt/core/aggregate"
	"github.com/kilianp07/octowatt/core/syncengine"
	"github.com/kilianp07/octowatt/infra/cache"
	"github.com/kilianp07/octowatt/infra/octopus"
)

// OctopusConfig holds the account and client settings.
type OctopusConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	MPAN           string `json:"mpan"`
	ElectricSerial string `json:"electric_serial"`
	MPRN           string `json:"mprn"`
	GasSerial      string `json:"gas_serial"`
	Product        string `json:"product"`
	// Region skips the meter point lookup when set.
	Region         string  `json:"region"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	Retries        int     `json:"retries"`
	RetryBackoffMS int     `json:"retry_backoff_ms"`
	RateLimit      float64 `json:"rate_limit"`
	RateBurst      int     `json:"rate_burst"`
}

func (c *OctopusConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = octopus.DefaultBaseURL
	}
	if c.Product == "" {
		c.Product = octopus.DefaultProduct
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.RetryBackoffMS == 0 {
		c.RetryBackoffMS = 1000
	}
	if c.RateBurst == 0 {
		c.RateBurst = 1
	}
}

func (c OctopusConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.MPAN == "" || c.ElectricSerial == "" {
		return fmt.Errorf("mpan and electric_serial are required")
	}
	if (c.MPRN == "") != (c.GasSerial == "") {
		return fmt.Errorf("mprn and gas_serial must be set together")
	}
	if c.Region != "" {
		if _, err := octopus.NormalizeRegion(c.Region); err != nil {
			return err
		}
	}
	if c.Retries < 0 || c.RateLimit < 0 {
		return fmt.Errorf("retries and rate_limit must not be negative")
	}
	return nil
}

// Account returns the credentials used by the API client.
func (c OctopusConfig) Account() octopus.Account {
	return octopus.Account{
		APIKey:         c.APIKey,
		MPAN:           c.MPAN,
		ElectricSerial: c.ElectricSerial,
		MPRN:           c.MPRN,
		GasSerial:      c.GasSerial,
	}
}

// HasGas reports whether a gas meter is configured.
func (c OctopusConfig) HasGas() bool { return c.MPRN != "" && c.GasSerial != "" }

// ClientOptions turns the settings into client options.
func (c OctopusConfig) ClientOptions() []octopus.Option {
	return []octopus.Option{
		octopus.WithBaseURL(c.BaseURL),
		octopus.WithTimeout(time.Duration(c.TimeoutSeconds) * time.Second),
		octopus.WithRetries(c.Retries, time.Duration(c.RetryBackoffMS)*time.Millisecond),
		octopus.WithRateLimit(c.RateLimit, c.RateBurst),
	}
}

// SyncConfig controls how series are reconciled.
type SyncConfig struct {
	// JoinDate is the supply start, as a date or RFC 3339 time.
	JoinDate string            `json:"join_date"`
	Engine   syncengine.Config `json:"engine"`
	// TariffEngine applies to unit rates, which come in much smaller pages.
	TariffEngine         syncengine.Config `json:"tariff_engine"`
	TariffHistoryDays    int               `json:"tariff_history_days"`
	TariffLookaheadHours int               `json:"tariff_lookahead_hours"`
	TimeoutSeconds       int               `json:"timeout_seconds"`
	// Schedule is a cron spec for background refresh in serve; empty disables.
	Schedule string `json:"schedule"`
}

const dateLayout = "2006-01-02"

func (c *SyncConfig) SetDefaults() {
	c.Engine.SetDefaults()
	if c.TariffEngine.PageSize == 0 {
		c.TariffEngine.PageSize = 1500
	}
	if c.TariffEngine.MaxPageSize == 0 {
		c.TariffEngine.MaxPageSize = 1500
	}
	if c.TariffHistoryDays == 0 {
		c.TariffHistoryDays = 7
	}
	if c.TariffLookaheadHours == 0 {
		c.TariffLookaheadHours = 48
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
}

func (c SyncConfig) Validate() error {
	if _, err := c.JoinTime(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.TariffEngine.Validate(); err != nil {
		return fmt.Errorf("tariff_engine: %w", err)
	}
	if c.TariffHistoryDays < 0 || c.TariffLookaheadHours < 0 {
		return fmt.Errorf("tariff horizons must not be negative")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}

// JoinTime parses JoinDate as UTC.
func (c SyncConfig) JoinTime() (time.Time, error) {
	if c.JoinDate == "" {
		return time.Time{}, fmt.Errorf("join_date is required")
	}
	if t, err := time.Parse(time.RFC3339, c.JoinDate); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, c.JoinDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("join_date %q: want YYYY-MM-DD or RFC 3339", c.JoinDate)
	}
	return t, nil
}

// Timeout bounds one update cycle.
func (c SyncConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// CacheConfig locates the persisted series.
type CacheConfig struct {
	Dir string         `json:"dir"`
	S3  cache.S3Config `json:"s3"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "data"
	}
}

func (c CacheConfig) Validate() error {
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when the mirror is enabled")
	}
	return nil
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
	// MinRefreshSeconds lets requests reuse a snapshot younger than this.
	MinRefreshSeconds   int `json:"min_refresh_seconds"`
	ReadTimeoutSeconds  int `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int `json:"write_timeout_seconds"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 10
	}
	if c.WriteTimeoutSeconds == 0 {
		c.WriteTimeoutSeconds = 330
	}
}

func (c ServerConfig) Validate() error {
	if c.MinRefreshSeconds < 0 {
		return fmt.Errorf("min_refresh_seconds must not be negative")
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("cors origin %q must be an http(s) URL", o)
		}
	}
	return nil
}

// AggregateConfig tunes the reporting series.
type AggregateConfig struct {
	ElectricWindow int                     `json:"electric_window"`
	GasWindow      int                     `json:"gas_window"`
	Gas            aggregate.GasConversion `json:"gas"`
	// GasThreshold drops hours at or below this volume (m3) from the
	// seasonal distributions.
	GasThreshold float64 `json:"gas_threshold"`
	// GasBaselineBefore (YYYY-MM-DD) adds a distribution of every hour
	// before that date. Empty disables it.
	GasBaselineBefore string              `json:"gas_baseline_before"`
	GasTariff         aggregate.GasTariff `json:"gas_tariff"`
}

func (c *AggregateConfig) SetDefaults() {
	if c.ElectricWindow == 0 {
		c.ElectricWindow = 480
	}
	if c.GasWindow == 0 {
		c.GasWindow = 1440
	}
	if c.GasThreshold == 0 {
		c.GasThreshold = 0.1
	}
	if c.GasTariff.Days == 0 {
		c.GasTariff.Days = 30
	}
	c.Gas.SetDefaults()
}

func (c AggregateConfig) Validate() error {
	if c.ElectricWindow < 1 || c.GasWindow < 1 {
		return fmt.Errorf("rolling windows must be at least one slot")
	}
	if c.Gas.VolumeCorrection <= 0 || c.Gas.CalorificValue <= 0 {
		return fmt.Errorf("gas conversion factors must be positive")
	}
	if c.GasThreshold < 0 {
		return fmt.Errorf("gas_threshold must not be negative")
	}
	if _, _, err := c.Baseline(); err != nil {
		return err
	}
	t := c.GasTariff
	if t.StandingCharge < 0 || t.UnitRate < 0 || t.VAT < 0 || t.Days < 1 {
		return fmt.Errorf("gas_tariff charges must not be negative and days must be at least 1")
	}
	return nil
}

// Baseline parses GasBaselineBefore. ok is false when it is unset.
func (c AggregateConfig) Baseline() (t time.Time, ok bool, err error) {
	if c.GasBaselineBefore == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.DateOnly, c.GasBaselineBefore)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("gas_baseline_before %q: %w", c.GasBaselineBefore, err)
	}
	return t, true, nil
}
