// Package config loads application settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mgazza/octopus-insights/internal/logging"
)

// Config holds all application configuration
type Config struct {
	Octopus  OctopusConfig  `mapstructure:"octopus"`
	Tariff   TariffConfig   `mapstructure:"tariff"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  logging.Config `mapstructure:"logging"`

	// Timezone is the IANA zone period boundaries are computed in.
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// OctopusConfig holds Octopus Energy API configuration
type OctopusConfig struct {
	APIKey    string `mapstructure:"api_key" validate:"required"`
	AccountID string `mapstructure:"account_id"`

	// RequestsPerSecond and Burst limit calls to the API.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"min=1"`
	PageSize          int     `mapstructure:"page_size" validate:"min=1,max=1500"`
}

// TariffConfig overrides what the rate endpoints publish for the tariff.
// Unit rates are in pence per kWh and the standing charge in pence per day,
// all VAT inclusive. Unset rates are fetched.
type TariffConfig struct {
	// Code overrides the tariff found on the account agreement.
	Code           string   `mapstructure:"code"`
	DisplayName    string   `mapstructure:"display_name"`
	StandingCharge *float64 `mapstructure:"standing_charge" validate:"omitempty,gte=0"`
	DayUnitRate    *float64 `mapstructure:"day_unit_rate" validate:"omitempty,gte=0"`
	NightUnitRate  *float64 `mapstructure:"night_unit_rate" validate:"omitempty,gte=0"`
	OffPeakRate    *float64 `mapstructure:"off_peak_rate" validate:"omitempty,gte=0"`
	PaymentMethod  string   `mapstructure:"payment_method" validate:"omitempty,oneof=DIRECT_DEBIT NON_DIRECT_DEBIT"`
}

// CacheConfig holds the HTTP response cache configuration
type CacheConfig struct {
	// Dir is "disable" to turn the cache off, or empty for the temp directory.
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds the rate store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ReportConfig holds defaults for the report command
type ReportConfig struct {
	Style  string `mapstructure:"style" validate:"oneof=day-half-hourly week-seven-days month-weeks month-thirty-days year-twelve-months"`
	Output string `mapstructure:"output"`
	Format string `mapstructure:"format" validate:"oneof=csv json yaml"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "Europe/London")

	v.SetDefault("octopus.requests_per_second", 2.0)
	v.SetDefault("octopus.burst", 4)
	v.SetDefault("octopus.page_size", 672)

	v.SetDefault("tariff.payment_method", "DIRECT_DEBIT")

	v.SetDefault("cache.dir", "disable")
	v.SetDefault("database.path", "./data/octopus-insights.db")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("report.style", "day-half-hourly")
	v.SetDefault("report.output", "output.csv")
	v.SetDefault("report.format", "csv")

	defaults := logging.DefaultConfig()
	v.SetDefault("logging.level", defaults.Level)
	v.SetDefault("logging.format", defaults.Format)
	v.SetDefault("logging.output", defaults.Output)
}

func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"octopus.api_key":        "OCTOPUS_API_KEY",
		"octopus.account_id":     "OCTOPUS_ACCOUNT_ID",
		"tariff.code":            "TARIFF_CODE",
		"tariff.standing_charge": "TARIFF_STANDING_CHARGE",
		"tariff.day_unit_rate":   "TARIFF_DAY_UNIT_RATE",
		"tariff.night_unit_rate": "TARIFF_NIGHT_UNIT_RATE",
		"tariff.off_peak_rate":   "TARIFF_OFF_PEAK_RATE",
		"tariff.payment_method":  "TARIFF_PAYMENT_METHOD",
		"cache.dir":              "CACHE_DIR",
		"database.path":          "DATABASE_PATH",
		"server.host":            "SERVER_HOST",
		"server.port":            "SERVER_PORT",
		"report.output":          "OUTPUT_CSV",
		"logging.level":          "LOG_LEVEL",
		"logging.format":         "LOG_FORMAT",
		"timezone":               "TIMEZONE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", key, env, err)
		}
	}
	return nil
}

// Validate checks field constraints and that the timezone exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %s", describeValidationError(err))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireAccount checks the settings needed to read the account's meters.
func (c *Config) RequireAccount() error {
	if c.Octopus.AccountID == "" {
		return errors.New("OCTOPUS_ACCOUNT_ID is required")
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// describeValidationError joins validator failures into one message using
// the dotted config key of each field.
func describeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "min", "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}
