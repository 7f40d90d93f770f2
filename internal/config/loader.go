package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/david/award-finder/internal/ingest"
)

const (
	EnvPrefix      = "AWARDFINDER"
	DefaultEnvFile = ".env"

	DefaultPSCCode     = "D310"
	DefaultHorizonDays = 365
	DefaultCSVPath     = "output/disa_cyber_expiring.csv"
	DefaultDebugPath   = "output/debug_run.json"
)

// legacyEnv maps config keys to the unprefixed variable names older
// deployments already export.
var legacyEnv = map[string]string{
	"profile":             "PROFILE",
	"window.horizon_days": "HORIZON_DAYS",
	"window.start_date":   "START_DATE",
	"window.end_date":     "END_DATE",
	"query.psc_codes":     "PSC_CODES",
	"query.base_url":      "USASPENDING_BASE_URL",
	"max_pages":           "MAX_PAGES",
	"log.level":           "LOG_LEVEL",
	"output.csv_path":     "OUTPUT_PATH",
}

// Options control where Load reads from.
type Options struct {
	// ConfigFile is an optional YAML file. Empty skips file loading.
	ConfigFile string
	// EnvFile is loaded into the process environment when present.
	// Defaults to .env in the working directory.
	EnvFile string
	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
	// Registry resolves profile names. Nil loads the embedded registry.
	Registry *ingest.Registry
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "")
	v.SetDefault("window.start_date", "")
	v.SetDefault("window.end_date", "")

	v.SetDefault("query.base_url", ingest.DefaultBaseURL)
	v.SetDefault("query.award_type_codes", ingest.ContractAwardTypes)
	v.SetDefault("query.sort", "End Date")
	v.SetDefault("query.order", "desc")
	v.SetDefault("query.limit", 100)
	v.SetDefault("query.subawards", false)
	v.SetDefault("query.time_period_filter", false)

	v.SetDefault("max_pages", 200)

	v.SetDefault("retry.max_attempts", 8)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_delay", 60*time.Second)

	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.user_agent", "award-finder/1.0")

	v.SetDefault("pacing.min_interval", 200*time.Millisecond)
	v.SetDefault("pacing.jitter", 300*time.Millisecond)

	v.SetDefault("output.csv_path", DefaultCSVPath)
	v.SetDefault("output.debug_path", DefaultDebugPath)

	v.SetDefault("debug.sample_size", 5)

	v.SetDefault("report.sanitize_text", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.textfile", "")
}

// Load builds the run configuration. Precedence, lowest first: defaults,
// config file, profile, environment, overrides. A profile only fills
// settings the file, environment and overrides leave unset.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name); err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
	}
	// Keys without defaults, so IsSet reports only explicit settings. Their
	// legacy variables use list or truthy syntax and are read below.
	for _, key := range []string{"agency.match", "debug.sample", "query.agency_filter"} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	agencySet := v.IsSet("agency.match")
	if raw, ok := os.LookupEnv("AGENCY_MATCH"); ok && !agencySet {
		cfg.Agency.Match = ingest.ParsePatterns(raw)
		agencySet = true
	}
	if raw, ok := os.LookupEnv("DEBUG_SAMPLE"); ok && !v.IsSet("debug.sample") {
		cfg.Debug.Sample = truthy(raw)
	}
	if raw, ok := os.LookupEnv("AGENCY_QUERY_FILTER"); ok && !v.IsSet("query.agency_filter") {
		cfg.Query.AgencyFilter = truthy(raw)
	}

	if cfg.Profile != "" {
		reg := opts.Registry
		if reg == nil {
			var err error
			if reg, err = ingest.LoadRegistry(""); err != nil {
				return nil, err
			}
		}
		p, err := reg.Find(cfg.Profile)
		if err != nil {
			return nil, err
		}
		cfg.applyProfile(p, v.IsSet("query.psc_codes"), agencySet, v.IsSet("window.horizon_days"))
	}

	cfg.normalize(v.IsSet("window.horizon_days"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyProfile(p *ingest.Profile, pscSet, agencySet, horizonSet bool) {
	if !pscSet && len(p.PSCCodes) > 0 {
		c.Query.PSCCodes = append([]string(nil), p.PSCCodes...)
	}
	if !agencySet && len(p.AgencyPatterns) > 0 {
		c.Agency.Match = append([]string(nil), p.AgencyPatterns...)
	}
	if len(c.Query.Agencies) == 0 && len(p.QueryAgencies) > 0 {
		c.Query.Agencies = append([]ingest.AgencyFilter(nil), p.QueryAgencies...)
	}
	if !horizonSet && p.HorizonDays > 0 {
		c.Window.HorizonDays = p.HorizonDays
	}
}

func (c *Config) normalize(horizonSet bool) {
	var psc []string
	for _, code := range c.Query.PSCCodes {
		psc = append(psc, ingest.SplitList(strings.ToUpper(code), ",")...)
	}
	c.Query.PSCCodes = psc
	if len(c.Query.PSCCodes) == 0 {
		c.Query.PSCCodes = []string{DefaultPSCCode}
	}

	if !horizonSet && c.Window.HorizonDays == 0 {
		c.Window.HorizonDays = DefaultHorizonDays
	}

	var patterns []string
	for _, p := range c.Agency.Match {
		patterns = append(patterns, ingest.ParsePatterns(p)...)
	}
	c.Agency.Match = ingest.NewAgencyMatcher(patterns).Patterns()

	c.Query.Order = strings.ToLower(strings.TrimSpace(c.Query.Order))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
