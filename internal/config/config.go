// Package config reads process settings from a .env file, the environment
// and an optional YAML lab file. Environment values win over the lab file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr       = ":8080"
	DefaultReportsDir = "data/receipts"
)

var ErrNoTokenKey = errors.New("TOKEN_KEY environment variable is not set")

type Config struct {
	Addr        string
	TLSCert     string
	TLSKey      string
	DatabaseURL string
	TokenKey    string
	ReportsDir  string
	LogLevel    string
	LogFormat   string
	Lab         Lab
}

// Lab holds the per-laboratory settings.
type Lab struct {
	Instrument string    `yaml:"instrument"`
	Caption    string    `yaml:"caption"`
	ReportsDir string    `yaml:"reports_dir"`
	RateLimit  RateLimit `yaml:"rate_limit"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load applies envFile to the environment, then reads labFile. Either file
// may be absent; an empty name skips it.
func Load(envFile, labFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	lab := Lab{RateLimit: RateLimit{PerSecond: 1, Burst: 3}}
	if labFile != "" {
		data, err := os.ReadFile(labFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read lab file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &lab); err != nil {
				return Config{}, fmt.Errorf("parse lab file %s: %w", labFile, err)
			}
		}
	}
	if lab.RateLimit.PerSecond <= 0 || lab.RateLimit.Burst <= 0 {
		return Config{}, fmt.Errorf("lab file %s: rate_limit needs positive per_second and burst", labFile)
	}

	c := Config{
		Addr:        env("ACTA_ADDR", DefaultAddr),
		TLSCert:     os.Getenv("ACTA_TLS_CERT"),
		TLSKey:      os.Getenv("ACTA_TLS_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TokenKey:    os.Getenv("TOKEN_KEY"),
		ReportsDir:  env("ACTA_REPORTS_DIR", lab.ReportsDir),
		LogLevel:    env("ACTA_LOG_LEVEL", "info"),
		LogFormat:   env("ACTA_LOG_FORMAT", "json"),
		Lab:         lab,
	}
	if c.ReportsDir == "" {
		c.ReportsDir = DefaultReportsDir
	}
	return c, nil
}

// TLS reports whether both the certificate and the key are configured.
func (c Config) TLS() bool { return c.TLSCert != "" && c.TLSKey != "" }

// Validate checks what the HTTP server needs beyond Load's defaults.
func (c Config) Validate() error {
	if c.TokenKey == "" {
		return ErrNoTokenKey
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("ACTA_TLS_CERT and ACTA_TLS_KEY must be set together")
	}
	return nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
