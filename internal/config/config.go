// Package config loads the billing service configuration.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration.
type Config struct {
	DatabaseURL string        `yaml:"database_url"`
	HTTPAddr    string        `yaml:"http_addr"`
	CRM         ServiceConfig `yaml:"crm"`
	Returns     ServiceConfig `yaml:"returns"`
	Worker      WorkerConfig  `yaml:"worker"`
	Reports     ReportsConfig `yaml:"reports"`
	Shutdown    time.Duration `yaml:"shutdown_timeout"`
}

// ServiceConfig locates an upstream HTTP service.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// WorkerConfig tunes the job worker.
type WorkerConfig struct {
	Concurrency               int           `yaml:"concurrency"`
	BatchSize                 int           `yaml:"batch_size"`
	PollInterval              time.Duration `yaml:"poll_interval"`
	ChargeVersionYearAttempts int           `yaml:"charge_version_year_attempts"`
}

// ReportsConfig selects where batch summaries are stored. An empty Dir and
// S3Bucket disables reports.
type ReportsConfig struct {
	Dir       string   `yaml:"dir"`
	S3Bucket  string   `yaml:"s3_bucket"`
	S3Prefix  string   `yaml:"s3_prefix"`
	S3Region  string   `yaml:"s3_region"`
	S3Profile string   `yaml:"s3_profile"`
	Formats   []string `yaml:"formats"`
}

// Enabled reports whether a report store is configured.
func (r ReportsConfig) Enabled() bool {
	return r.Dir != "" || r.S3Bucket != ""
}

// Load applies defaults, then the YAML file named by BILLING_CONFIG, then
// environment overrides.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: ":8080",
		CRM:      ServiceConfig{Timeout: 10 * time.Second},
		Returns:  ServiceConfig{Timeout: 10 * time.Second},
		Worker: WorkerConfig{
			Concurrency:               4,
			BatchSize:                 50,
			PollInterval:              time.Second,
			ChargeVersionYearAttempts: 3,
		},
		Shutdown: 10 * time.Second,
	}

	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.CRM.BaseURL = getenvDefault("CRM_BASE_URL", cfg.CRM.BaseURL)
	cfg.CRM.Token = getenvDefault("CRM_TOKEN", cfg.CRM.Token)
	cfg.CRM.Timeout = getenvDuration("CRM_TIMEOUT", cfg.CRM.Timeout)
	cfg.Returns.BaseURL = getenvDefault("RETURNS_BASE_URL", cfg.Returns.BaseURL)
	cfg.Returns.Token = getenvDefault("RETURNS_TOKEN", cfg.Returns.Token)
	cfg.Returns.Timeout = getenvDuration("RETURNS_TIMEOUT", cfg.Returns.Timeout)
	cfg.Worker.Concurrency = getenvIntDefault("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.BatchSize = getenvIntDefault("WORKER_BATCH_SIZE", cfg.Worker.BatchSize)
	cfg.Worker.PollInterval = getenvDuration("WORKER_POLL_INTERVAL", cfg.Worker.PollInterval)
	cfg.Worker.ChargeVersionYearAttempts = getenvIntDefault("WORKER_CVY_ATTEMPTS", cfg.Worker.ChargeVersionYearAttempts)
	cfg.Reports.Dir = getenvDefault("REPORT_DIR", cfg.Reports.Dir)
	cfg.Reports.S3Bucket = getenvDefault("REPORT_S3_BUCKET", cfg.Reports.S3Bucket)
	cfg.Reports.S3Prefix = getenvDefault("REPORT_S3_PREFIX", cfg.Reports.S3Prefix)
	cfg.Reports.S3Region = getenvDefault("REPORT_S3_REGION", cfg.Reports.S3Region)
	cfg.Reports.S3Profile = getenvDefault("REPORT_S3_PROFILE", cfg.Reports.S3Profile)
	if formats := splitCSV(os.Getenv("REPORT_FORMATS")); len(formats) > 0 {
		cfg.Reports.Formats = formats
	}
	cfg.Shutdown = getenvDuration("SHUTDOWN_TIMEOUT", cfg.Shutdown)

	return cfg, cfg.Validate()
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if c.CRM.BaseURL == "" {
		return errors.New("config: CRM_BASE_URL is required")
	}
	if c.Returns.BaseURL == "" {
		return errors.New("config: RETURNS_BASE_URL is required")
	}
	if c.Worker.ChargeVersionYearAttempts < 1 {
		return errors.New("config: charge version year attempts must be positive")
	}
	for _, format := range c.Reports.Formats {
		if format != "pdf" && format != "xlsx" {
			return errors.New("config: report format must be pdf or xlsx")
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
