// Package config loads run configuration from defaults, an optional YAML
// file, a named query profile, and environment variables, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/david/award-finder/internal/ingest"
)

type Config struct {
	Profile  string        `mapstructure:"profile" yaml:"profile"`
	Window   WindowConfig  `mapstructure:"window" yaml:"window"`
	Query    QueryConfig   `mapstructure:"query" yaml:"query"`
	Agency   AgencyConfig  `mapstructure:"agency" yaml:"agency"`
	MaxPages int           `mapstructure:"max_pages" yaml:"max_pages"`
	Retry    RetryConfig   `mapstructure:"retry" yaml:"retry"`
	HTTP     HTTPConfig    `mapstructure:"http" yaml:"http"`
	Pacing   PacingConfig  `mapstructure:"pacing" yaml:"pacing"`
	Output   OutputConfig  `mapstructure:"output" yaml:"output"`
	Debug    DebugConfig   `mapstructure:"debug" yaml:"debug"`
	Report   ReportConfig  `mapstructure:"report" yaml:"report"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// WindowConfig describes the End Date window. Start defaults to today and
// End to Start + HorizonDays; either can be pinned explicitly.
type WindowConfig struct {
	HorizonDays int    `mapstructure:"horizon_days" yaml:"horizon_days"`
	StartDate   string `mapstructure:"start_date" yaml:"start_date,omitempty"`
	EndDate     string `mapstructure:"end_date" yaml:"end_date,omitempty"`
}

type QueryConfig struct {
	BaseURL        string   `mapstructure:"base_url" yaml:"base_url"`
	PSCCodes       []string `mapstructure:"psc_codes" yaml:"psc_codes"`
	AwardTypeCodes []string `mapstructure:"award_type_codes" yaml:"award_type_codes"`
	Sort           string   `mapstructure:"sort" yaml:"sort"`
	Order          string   `mapstructure:"order" yaml:"order"`
	Limit          int      `mapstructure:"limit" yaml:"limit"`
	Subawards      bool     `mapstructure:"subawards" yaml:"subawards"`

	// AgencyFilter sends Agencies as a server-side filter. Off by default:
	// the local pattern match is looser and tolerates naming differences.
	AgencyFilter bool                  `mapstructure:"agency_filter" yaml:"agency_filter"`
	Agencies     []ingest.AgencyFilter `mapstructure:"agencies" yaml:"agencies,omitempty"`

	// TimePeriodFilter adds the window as a time_period request filter.
	TimePeriodFilter bool `mapstructure:"time_period_filter" yaml:"time_period_filter"`
}

type AgencyConfig struct {
	// Match holds case-insensitive substrings tested against the awarding
	// and funding agency columns. Empty keeps every record.
	Match []string `mapstructure:"match" yaml:"match"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

type PacingConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	Jitter      time.Duration `mapstructure:"jitter" yaml:"jitter"`
}

type OutputConfig struct {
	CSVPath   string `mapstructure:"csv_path" yaml:"csv_path"`
	DebugPath string `mapstructure:"debug_path" yaml:"debug_path"`
}

type DebugConfig struct {
	Sample     bool `mapstructure:"sample" yaml:"sample"`
	SampleSize int  `mapstructure:"sample_size" yaml:"sample_size"`
}

type ReportConfig struct {
	SanitizeText bool `mapstructure:"sanitize_text" yaml:"sanitize_text"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// ResolveWindow turns the window settings into concrete dates relative to now.
func (c *Config) ResolveWindow(now time.Time) (ingest.Window, error) {
	start := now
	if c.Window.StartDate != "" {
		t, err := ingest.ParseDate(c.Window.StartDate)
		if err != nil {
			return ingest.Window{}, fmt.Errorf("window.start_date: %w", err)
		}
		start = t
	}

	end := start.AddDate(0, 0, c.Window.HorizonDays)
	if c.Window.EndDate != "" {
		t, err := ingest.ParseDate(c.Window.EndDate)
		if err != nil {
			return ingest.Window{}, fmt.Errorf("window.end_date: %w", err)
		}
		end = t
	}

	return ingest.NewWindow(start, end)
}

// BuildQuery returns the immutable search description for this run.
func (c *Config) BuildQuery(window ingest.Window) ingest.Query {
	q := ingest.NewQuery(c.Query.PSCCodes)
	if len(c.Query.AwardTypeCodes) > 0 {
		q.AwardTypeCodes = append([]string(nil), c.Query.AwardTypeCodes...)
	}
	q.Sort = c.Query.Sort
	q.Order = strings.ToLower(c.Query.Order)
	q.Limit = c.Query.Limit
	q.Subawards = c.Query.Subawards
	if c.Query.AgencyFilter {
		q.Agencies = append([]ingest.AgencyFilter(nil), c.Query.Agencies...)
	}
	if c.Query.TimePeriodFilter {
		w := window
		q.TimePeriod = &w
	}
	return q
}

// FetchConfig returns the HTTP client settings.
func (c *Config) FetchConfig() ingest.FetchConfig {
	return ingest.FetchConfig{
		Timeout:     c.HTTP.Timeout,
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		UserAgent:   c.HTTP.UserAgent,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", c.MaxPages)
	}
	if c.Query.Limit < 1 || c.Query.Limit > 100 {
		return fmt.Errorf("query.limit must be between 1 and 100, got %d", c.Query.Limit)
	}
	switch strings.ToLower(c.Query.Order) {
	case "asc", "desc":
	default:
		return fmt.Errorf("query.order must be asc or desc, got %q", c.Query.Order)
	}
	if len(c.Query.PSCCodes) == 0 {
		return fmt.Errorf("query.psc_codes must not be empty")
	}
	if c.Query.AgencyFilter && len(c.Query.Agencies) == 0 {
		return fmt.Errorf("query.agency_filter is on but no query.agencies are configured")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Window.HorizonDays < 0 {
		return fmt.Errorf("window.horizon_days must not be negative, got %d", c.Window.HorizonDays)
	}
	if c.Debug.SampleSize < 0 {
		return fmt.Errorf("debug.sample_size must not be negative, got %d", c.Debug.SampleSize)
	}
	if c.Output.CSVPath == "" {
		return fmt.Errorf("output.csv_path must not be empty")
	}
	return nil
}
