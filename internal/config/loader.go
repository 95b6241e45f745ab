package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // IANA names must resolve in minimal containers.

	"github.com/spf13/viper"

	"github.com/manuel-Igtm/meeting-tool/internal/scheduler"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "SCHEDULER"

// ReferenceZoneEAT is the fixed UTC+3 zone used when no IANA name is given.
var ReferenceZoneEAT = time.FixedZone("EAT", 3*60*60)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	ConfigFile string

	HTTPPort    int
	DatabaseDSN string
	RedisAddr   string
	ClaimTTL    time.Duration

	Location            *time.Location
	StrictAvailability  bool
	StrictParticipants  bool
	SlotGranularity     time.Duration
	DefaultSuggestions  int
	MaxSuggestions      int
	DefaultSearchWindow int
	MaxSearchWindow     int
	MaxRecurrence       time.Duration
	MaxCandidatesPerDay int
	DistinctSuggestions bool
	SkipWeekends        bool
	NextAvailableDays   int

	ReportCacheTTL time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

var defaults = map[string]any{
	"http_port":                  8080,
	"database_dsn":               "file:scheduler.db?_foreign_keys=on",
	"redis_addr":                 "",
	"claim_ttl":                  "10s",
	"reference_timezone":         "EAT",
	"strict_availability":        false,
	"strict_participants":        false,
	"slot_granularity":           "15m",
	"default_suggestions":        5,
	"max_suggestions":            20,
	"default_search_window_days": 7,
	"max_search_window_days":     31,
	"max_recurrence_horizon":     "8784h",
	"max_candidates_per_day":     96,
	"distinct_suggestions":       true,
	"skip_weekends":              false,
	"next_available_days":        14,
	"report_cache_ttl":           "30s",
	"otel_enabled":               false,
	"otel_endpoint":              "",
	"otel_sample_ratio":          1.0,
}

// Load reads configuration from SCHEDULER_* environment variables and, when
// SCHEDULER_CONFIG_FILE names one, a YAML file. Environment values win over
// the file. Every invalid entry is collected and reported in one error.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("config_file")

	cfg := Config{ConfigFile: strings.TrimSpace(v.GetString("config_file"))}
	if cfg.ConfigFile != "" {
		v.SetConfigFile(cfg.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", cfg.ConfigFile, err)
		}
	}

	p := parser{v: v}
	cfg.HTTPPort = p.positiveInt("http_port")
	cfg.DatabaseDSN = strings.TrimSpace(v.GetString("database_dsn"))
	cfg.RedisAddr = strings.TrimSpace(v.GetString("redis_addr"))
	cfg.ClaimTTL = p.positiveDuration("claim_ttl")
	cfg.Location = p.location("reference_timezone")
	cfg.StrictAvailability = p.boolean("strict_availability")
	cfg.StrictParticipants = p.boolean("strict_participants")
	cfg.SlotGranularity = p.positiveDuration("slot_granularity")
	cfg.DefaultSuggestions = p.positiveInt("default_suggestions")
	cfg.MaxSuggestions = p.positiveInt("max_suggestions")
	cfg.DefaultSearchWindow = p.positiveInt("default_search_window_days")
	cfg.MaxSearchWindow = p.positiveInt("max_search_window_days")
	cfg.MaxRecurrence = p.positiveDuration("max_recurrence_horizon")
	cfg.MaxCandidatesPerDay = p.positiveInt("max_candidates_per_day")
	cfg.DistinctSuggestions = p.boolean("distinct_suggestions")
	cfg.SkipWeekends = p.boolean("skip_weekends")
	cfg.NextAvailableDays = p.positiveInt("next_available_days")
	cfg.ReportCacheTTL = p.duration("report_cache_ttl")
	cfg.OTelEnabled = p.boolean("otel_enabled")
	cfg.OTelEndpoint = strings.TrimSpace(v.GetString("otel_endpoint"))
	cfg.OTelSampleRatio = p.ratio("otel_sample_ratio")

	if cfg.DatabaseDSN == "" {
		p.missing = append(p.missing, envName("database_dsn"))
	}
	if err := p.err(); err != nil {
		return Config{}, err
	}

	// Defaults may not exceed their caps.
	if cfg.DefaultSuggestions > cfg.MaxSuggestions {
		cfg.DefaultSuggestions = cfg.MaxSuggestions
	}
	if cfg.DefaultSearchWindow > cfg.MaxSearchWindow {
		cfg.DefaultSearchWindow = cfg.MaxSearchWindow
	}
	return cfg, nil
}

// Policy builds the immutable engine policy from cfg.
func (c Config) Policy() scheduler.Policy {
	return scheduler.Policy{
		Location:                c.Location,
		StrictAvailability:      c.StrictAvailability,
		StrictParticipants:      c.StrictParticipants,
		Granularity:             c.SlotGranularity,
		DefaultSuggestions:      c.DefaultSuggestions,
		MaxSuggestions:          c.MaxSuggestions,
		DefaultSearchWindowDays: c.DefaultSearchWindow,
		MaxSearchWindowDays:     c.MaxSearchWindow,
		MaxRecurrenceHorizon:    c.MaxRecurrence,
		MaxCandidatesPerDay:     c.MaxCandidatesPerDay,
		OverlappingSuggestions:  !c.DistinctSuggestions,
		SkipWeekends:            c.SkipWeekends,
		NextAvailableDays:       c.NextAvailableDays,
	}
}

// UsesPostgres reports whether the DSN selects the pgx store.
func (c Config) UsesPostgres() bool {
	dsn := strings.ToLower(c.DatabaseDSN)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// UsesMemory reports whether the DSN selects the in-memory store.
func (c Config) UsesMemory() bool {
	return strings.EqualFold(c.DatabaseDSN, "memory")
}

type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) positiveInt(key string) int {
	n, err := strconv.Atoi(p.raw(key))
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.raw(key))
	if err != nil || d < 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) positiveDuration(key string) time.Duration {
	d, err := time.ParseDuration(p.raw(key))
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) boolean(key string) bool {
	b, err := strconv.ParseBool(p.raw(key))
	if err != nil {
		p.invalid = append(p.invalid, envName(key))
		return false
	}
	return b
}

func (p *parser) ratio(key string) float64 {
	f, err := strconv.ParseFloat(p.raw(key), 64)
	if err != nil || f < 0 || f > 1 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return f
}

func (p *parser) location(key string) *time.Location {
	name := p.raw(key)
	if name == "" || strings.EqualFold(name, "EAT") {
		return ReferenceZoneEAT
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		p.invalid = append(p.invalid, envName(key))
		return nil
	}
	return loc
}

func (p *parser) err() error {
	var errs []error
	if len(p.missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(p.missing, ", ")))
	}
	if len(p.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid configuration values: %s", strings.Join(p.invalid, ", ")))
	}
	return errors.Join(errs...)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}
