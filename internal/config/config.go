package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// devSigningKey is only accepted when ENV=development.
const devSigningKey = "reportlink-development-signing-key"

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     string `mapstructure:"PORT"`
	MLLPAddr string `mapstructure:"MLLP_ADDR"`

	Store       string `mapstructure:"STORE"`
	DataDir     string `mapstructure:"DATA_DIR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTL   time.Duration `mapstructure:"AUTH_TOKEN_TTL"`

	UnidocLicenseKey string `mapstructure:"UNIDOC_LICENSE_API_KEY"`

	MatchWeightMRN      float64 `mapstructure:"MATCH_WEIGHT_MRN"`
	MatchWeightName     float64 `mapstructure:"MATCH_WEIGHT_NAME"`
	MatchWeightDOB      float64 `mapstructure:"MATCH_WEIGHT_DOB"`
	MatchAcceptFloor    float64 `mapstructure:"MATCH_ACCEPT_FLOOR"`
	MatchHighConfidence float64 `mapstructure:"MATCH_HIGH_CONFIDENCE"`
	MatchSimilarity     string  `mapstructure:"MATCH_SIMILARITY"`
	MatchRenormalize    bool    `mapstructure:"MATCH_RENORMALIZE"`

	DOBOrder          string `mapstructure:"DOB_ORDER"`
	HL7LegacyOBXGuard bool   `mapstructure:"HL7_LEGACY_OBX_GUARD"`
	ReportIDMode      string `mapstructure:"REPORT_ID_MODE"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "PORT", "MLLP_ADDR",
	"STORE", "DATA_DIR", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_SIGNING_KEY", "AUTH_TOKEN_TTL",
	"UNIDOC_LICENSE_API_KEY",
	"MATCH_WEIGHT_MRN", "MATCH_WEIGHT_NAME", "MATCH_WEIGHT_DOB",
	"MATCH_ACCEPT_FLOOR", "MATCH_HIGH_CONFIDENCE", "MATCH_SIMILARITY", "MATCH_RENORMALIZE",
	"DOB_ORDER", "HL7_LEGACY_OBX_GUARD", "REPORT_ID_MODE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")
	v.SetDefault("STORE", "json")
	v.SetDefault("DATA_DIR", "./DB")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("AUTH_TOKEN_TTL", "8h")
	v.SetDefault("MATCH_WEIGHT_MRN", 0.5)
	v.SetDefault("MATCH_WEIGHT_NAME", 0.3)
	v.SetDefault("MATCH_WEIGHT_DOB", 0.2)
	v.SetDefault("MATCH_ACCEPT_FLOOR", 60)
	v.SetDefault("MATCH_HIGH_CONFIDENCE", 85)
	v.SetDefault("MATCH_SIMILARITY", "levenshtein")
	v.SetDefault("MATCH_RENORMALIZE", true)
	v.SetDefault("DOB_ORDER", "day-first")
	v.SetDefault("HL7_LEGACY_OBX_GUARD", false)
	v.SetDefault("REPORT_ID_MODE", "random")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Missing .env is fine
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.AuthSigningKey == "" && cfg.IsDev() {
		cfg.AuthSigningKey = devSigningKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) PatientsFile() string { return filepath.Join(c.DataDir, "patients.json") }
func (c *Config) UsersFile() string    { return filepath.Join(c.DataDir, "users.json") }
func (c *Config) SessionLogFile() string {
	return filepath.Join(c.DataDir, "session.json")
}

// Validate checks enum values, matcher thresholds and the settings each
// backend needs before anything is opened.
func (c *Config) Validate() error {
	switch c.Store {
	case "json":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE is \"postgres\"")
		}
	default:
		return fmt.Errorf("STORE must be \"json\" or \"postgres\", got %q", c.Store)
	}

	if c.MatchSimilarity != "levenshtein" && c.MatchSimilarity != "jaro-winkler" {
		return fmt.Errorf("MATCH_SIMILARITY must be \"levenshtein\" or \"jaro-winkler\", got %q", c.MatchSimilarity)
	}
	if c.DOBOrder != "day-first" && c.DOBOrder != "month-first" {
		return fmt.Errorf("DOB_ORDER must be \"day-first\" or \"month-first\", got %q", c.DOBOrder)
	}
	if c.ReportIDMode != "random" && c.ReportIDMode != "content-hash" {
		return fmt.Errorf("REPORT_ID_MODE must be \"random\" or \"content-hash\", got %q", c.ReportIDMode)
	}

	if c.MatchWeightMRN < 0 || c.MatchWeightName < 0 || c.MatchWeightDOB < 0 {
		return fmt.Errorf("match weights must not be negative")
	}
	if c.MatchWeightMRN+c.MatchWeightName+c.MatchWeightDOB == 0 {
		return fmt.Errorf("at least one match weight must be positive")
	}
	if c.MatchAcceptFloor < 0 || c.MatchHighConfidence > 100 {
		return fmt.Errorf("match thresholds must be within 0-100")
	}
	if c.MatchAcceptFloor > c.MatchHighConfidence {
		return fmt.Errorf("MATCH_ACCEPT_FLOOR (%.0f) must not exceed MATCH_HIGH_CONFIDENCE (%.0f)",
			c.MatchAcceptFloor, c.MatchHighConfidence)
	}

	if c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	if c.IsProduction() && c.AuthSigningKey == devSigningKey {
		return fmt.Errorf("AUTH_SIGNING_KEY must not be the development key in production")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}
	return nil
}
