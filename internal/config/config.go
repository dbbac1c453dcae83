// Package config loads the collector configuration from a YAML file and
// lets environment variables override it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"solar-monitor/internal/metricdef"
	"solar-monitor/internal/model"
	"solar-monitor/internal/panel"
	"solar-monitor/internal/tsdb"
)

// EnvPrefix is the default prefix for environment overrides.
const EnvPrefix = "SOLARMON"

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Panels    []PanelConfig   `yaml:"panels"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
}

type DatabaseConfig struct {
	Type     string `yaml:"type"` // sqlite | postgres
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Host is the file path for sqlite.
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	PoolSize int    `yaml:"pool_size"`
	Seed     bool   `yaml:"seed"`
}

type CollectorConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9100".
	MetricsAddr string `yaml:"metrics_addr"`
}

type PanelConfig struct {
	Name        string        `yaml:"name"`
	Protocol    string        `yaml:"protocol"` // modbus-tcp | modbus-rtu
	Host        string        `yaml:"host"`     // host:port, or serial device for RTU
	UnitID      uint8         `yaml:"unit_id"`
	Timeout     time.Duration `yaml:"timeout"`
	TopicPrefix string        `yaml:"topic_prefix"`

	MetricsFile  string            `yaml:"metrics_file"` // .xlsx or .yaml
	MetricsSheet string            `yaml:"metrics_sheet"`
	Metrics      []metricdef.Entry `yaml:"metrics"`

	PollInterval time.Duration `yaml:"poll_interval"`
	Retries      int           `yaml:"retries"`
	RetryWait    time.Duration `yaml:"retry_wait"`

	// RTU
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{Type: "sqlite", Host: "solar.sqlite", Name: "uwsolar", PoolSize: 3},
	}
}

// LoadYAML reads path, fills defaults and validates the result.
func LoadYAML(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML over Default and validates it.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Panels {
		p := &c.Panels[i]
		if p.Protocol == "" {
			p.Protocol = "modbus-tcp"
		}
		if p.UnitID == 0 {
			p.UnitID = 1
		}
		if p.Timeout <= 0 {
			p.Timeout = 5 * time.Second
		}
		if p.MetricsSheet == "" {
			p.MetricsSheet = metricdef.DefaultSheet
		}
		if p.PollInterval <= 0 {
			p.PollInterval = time.Minute
		}
		if p.Retries <= 0 {
			p.Retries = 3
		}
		if p.RetryWait <= 0 {
			p.RetryWait = time.Second
		}
		if p.Name == "" {
			p.Name = p.TopicPrefix
		}
	}
}

// Validate checks the fields every command relies on.
func (c Config) Validate() error {
	if _, err := tsdb.ParseDialect(c.Database.Type); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, p := range c.Panels {
		if strings.TrimSpace(p.Host) == "" {
			return fmt.Errorf("panels[%d]: host is required", i)
		}
		if strings.TrimSpace(p.TopicPrefix) == "" {
			return fmt.Errorf("panels[%d]: topic_prefix is required", i)
		}
		if p.MetricsFile == "" && len(p.Metrics) == 0 {
			return fmt.Errorf("panels[%d]: metrics_file or metrics is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("panels[%d]: duplicate panel name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// StoreOptions converts the database section.
func (d DatabaseConfig) StoreOptions() (tsdb.Options, error) {
	dialect, err := tsdb.ParseDialect(d.Type)
	if err != nil {
		return tsdb.Options{}, err
	}
	return tsdb.Options{
		Dialect:  dialect,
		User:     d.User,
		Password: d.Password,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Name,
		SSLMode:  d.SSLMode,
		PoolSize: d.PoolSize,
		Seed:     d.Seed,
	}, nil
}

// ClientConfig converts a panel section to transport settings.
func (p PanelConfig) ClientConfig() panel.Config {
	return panel.Config{
		Protocol: p.Protocol,
		Address:  p.Host,
		UnitID:   p.UnitID,
		Timeout:  p.Timeout,
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		StopBits: p.StopBits,
		Parity:   p.Parity,
	}
}

// LoadMetrics returns the panel's descriptors from metrics_file, or from
// the inline list when no file is set.
func (p PanelConfig) LoadMetrics() ([]model.Metric, error) {
	if p.MetricsFile != "" {
		return metricdef.LoadFile(p.MetricsFile, p.MetricsSheet, p.TopicPrefix)
	}
	return metricdef.FromEntries(p.Metrics, p.TopicPrefix)
}

// ApplyEnv overrides fields from prefix_* environment variables. The PANEL_*
// variables apply to the first panel, which is created if the file had none.
// Validate again afterwards.
func (c *Config) ApplyEnv(prefix string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok && v != "" {
			d, err := parseSeconds(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("DB_TYPE", &c.Database.Type)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)
	num("DB_POOL_SIZE", &c.Database.PoolSize)
	str("METRICS_ADDR", &c.Collector.MetricsAddr)

	if hasPanelEnv(prefix) {
		if len(c.Panels) == 0 {
			c.Panels = append(c.Panels, PanelConfig{})
		}
		p := &c.Panels[0]
		str("PANEL_HOST", &p.Host)
		str("PANEL_TOPIC_PREFIX", &p.TopicPrefix)
		str("PANEL_METRICS_WORKBOOK", &p.MetricsFile)
		str("PANEL_METRICS_WORKSHEET_NAME", &p.MetricsSheet)
		num("PANEL_MODBUS_RETRIES", &p.Retries)
		dur("PANEL_MODBUS_RETRY_WAIT_TIME", &p.RetryWait)
		dur("PANEL_POLL_INTERVAL", &p.PollInterval)
		c.applyDefaults()
	}
	return errors.Join(errs...)
}

func hasPanelEnv(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix+"_PANEL_") {
			return true
		}
	}
	return false
}

// parseSeconds accepts a Go duration ("1500ms") or a bare number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}
