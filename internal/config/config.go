// Package config loads service settings.
//
// Settings come from an optional YAML file (SDMOX_CONFIG or --config) and are
// then overridden by environment variables. Validate must pass before any
// client is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the complete configuration of the service.
type Settings struct {
	Environment string `yaml:"environment"`

	Directory    DirectoryConfig    `yaml:"directory"`
	Registry     RegistryConfig     `yaml:"registry"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	DAWA         DAWAConfig         `yaml:"dawa"`
	Verification VerificationConfig `yaml:"verification"`
	Attributes   AttributeConfig    `yaml:"attributes"`
	Database     DatabaseConfig     `yaml:"database"`
	HTTP         HTTPConfig         `yaml:"http"`
	Worker       WorkerConfig       `yaml:"worker"`
	Log          LogConfig          `yaml:"log"`

	// LevelKeys lists level names from the top of the hierarchy down.
	LevelKeys []string `yaml:"ou_levelkeys"`
}

// DirectoryConfig locates the organisational directory (OS2MO).
type DirectoryConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// RegistryConfig configures read access to the SD registry.
type RegistryConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Institution string        `yaml:"institution"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AMQPConfig configures the change-message channel.
type AMQPConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	VirtualHost string        `yaml:"virtual_host"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Exchange    string        `yaml:"exchange"`
	RoutingKey  string        `yaml:"routing_key"`
	ReplyGrace  time.Duration `yaml:"reply_grace"`
}

// DAWAConfig locates the address-resolution service.
type DAWAConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// VerificationConfig controls read-back polling.
type VerificationConfig struct {
	Retries  int           `yaml:"amqp_check_retries"`
	WaitTime time.Duration `yaml:"amqp_check_waittime"`
}

// AttributeConfig names the keyed address records that carry registry integration values.
type AttributeConfig struct {
	PurposeKey string `yaml:"purpose_key"`
	SchoolKey  string `yaml:"school_key"`
}

// DatabaseConfig enables the submission journal when DSN is set.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// WorkerConfig configures the journal re-verification worker.
type WorkerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	// Retention is how long settled journal entries are kept. Zero keeps them forever.
	Retention   time.Duration `yaml:"retention"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Defaults returns settings with every optional value filled in.
func Defaults() Settings {
	return Settings{
		Environment: "production",
		Directory:   DirectoryConfig{Timeout: 30 * time.Second},
		Registry: RegistryConfig{
			BaseURL: "https://service.sd.dk/sdws/",
			Timeout: 30 * time.Second,
		},
		AMQP: AMQPConfig{
			Port:        5672,
			VirtualHost: "/",
			Exchange:    "org-struktur-changes-topic",
			RoutingKey:  "#",
			ReplyGrace:  2 * time.Second,
		},
		DAWA: DAWAConfig{
			BaseURL: "https://api.dataforsyningen.dk/",
			Timeout: 10 * time.Second,
		},
		Verification: VerificationConfig{Retries: 6, WaitTime: 3 * time.Second},
		Attributes:   AttributeConfig{PurposeKey: "Formålskode", SchoolKey: "Skolekode"},
		Database:     DatabaseConfig{MaxConns: 10},
		HTTP:         HTTPConfig{Port: "8080"},
		Worker:       WorkerConfig{Interval: time.Minute, BatchSize: 20, MaxAttempts: 5, Retention: 30 * 24 * time.Hour},
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates.
func Load(path string) (*Settings, error) {
	s := Defaults()
	if path == "" {
		path = os.Getenv("SDMOX_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	s.applyEnv(os.LookupEnv)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

type lookupFunc func(string) (string, bool)

func (s *Settings) applyEnv(lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(secs) * time.Second
		}
	}

	str("APP_ENV", &s.Environment)
	str("MORA_BASE", &s.Directory.URL)
	str("MORA_TOKEN", &s.Directory.Token)
	str("SD_BASE_URL", &s.Registry.BaseURL)
	str("SD_INSTITUTION", &s.Registry.Institution)
	str("SD_USER", &s.Registry.Username)
	str("SD_PASSWORD", &s.Registry.Password)
	str("AMQP_HOST", &s.AMQP.Host)
	num("AMQP_PORT", &s.AMQP.Port)
	str("AMQP_VIRTUAL_HOST", &s.AMQP.VirtualHost)
	str("AMQP_USERNAME", &s.AMQP.Username)
	str("AMQP_PASSWORD", &s.AMQP.Password)
	str("AMQP_EXCHANGE", &s.AMQP.Exchange)
	dur("AMQP_REPLY_GRACE", &s.AMQP.ReplyGrace)
	str("DAWA_URL", &s.DAWA.BaseURL)
	num("AMQP_CHECK_RETRIES", &s.Verification.Retries)
	dur("AMQP_CHECK_WAITTIME", &s.Verification.WaitTime)
	str("DATABASE_URL", &s.Database.DSN)
	str("APP_PORT", &s.HTTP.Port)
	str("JWT_SECRET", &s.HTTP.JWTSecret)
	dur("WORKER_INTERVAL", &s.Worker.Interval)
	dur("JOURNAL_RETENTION", &s.Worker.Retention)
	str("LOG_LEVEL", &s.Log.Level)

	if v, ok := lookup("OU_LEVELKEYS"); ok && v != "" {
		s.LevelKeys = splitList(v)
	}
	s.Log.Development = s.Log.Development || s.Environment == "development"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every missing or malformed setting at once.
func (s *Settings) Validate() error {
	var errs []error
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	require("directory.url", s.Directory.URL)
	require("registry.base_url", s.Registry.BaseURL)
	require("registry.institution", s.Registry.Institution)
	require("registry.username", s.Registry.Username)
	require("registry.password", s.Registry.Password)
	require("amqp.host", s.AMQP.Host)
	require("amqp.exchange", s.AMQP.Exchange)
	require("dawa.base_url", s.DAWA.BaseURL)

	if len(s.LevelKeys) == 0 {
		errs = append(errs, errors.New("ou_levelkeys must list at least one level"))
	}
	seen := make(map[string]bool, len(s.LevelKeys))
	for _, k := range s.LevelKeys {
		if seen[k] {
			errs = append(errs, fmt.Errorf("ou_levelkeys: duplicate level %q", k))
		}
		seen[k] = true
	}
	if s.Verification.Retries < 1 {
		errs = append(errs, errors.New("verification.amqp_check_retries must be at least 1"))
	}
	if s.Verification.WaitTime < 0 {
		errs = append(errs, errors.New("verification.amqp_check_waittime must not be negative"))
	}
	if s.AMQP.Port <= 0 || s.AMQP.Port > 65535 {
		errs = append(errs, fmt.Errorf("amqp.port %d out of range", s.AMQP.Port))
	}
	return errors.Join(errs...)
}
