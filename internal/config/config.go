package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/partsflow/descgen-backend/internal/generator"
	"github.com/partsflow/descgen-backend/internal/platform/envutil"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// Config carries server settings and run defaults. Values come from an
// optional YAML file, overridden by environment variables.
type Config struct {
	Port         int      `yaml:"port"`
	LogMode      string   `yaml:"log_mode"`
	AllowOrigins []string `yaml:"allow_origins"`

	Models            []string `yaml:"models"`
	SecondaryModel    string   `yaml:"secondary_model"`
	MaxRetries        int      `yaml:"max_retries"`
	RetryDelaySeconds float64  `yaml:"retry_delay_seconds"`

	Headers HeaderNames `yaml:"headers"`
}

type HeaderNames struct {
	Row         int    `yaml:"row"`
	Article     string `yaml:"article"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func defaults() *Config {
	eng := generator.DefaultEngineConfig()
	hdr := generator.DefaultHeaderConfig()
	return &Config{
		Port:              5001,
		LogMode:           "development",
		AllowOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
		Models:            eng.Models,
		SecondaryModel:    eng.SecondaryModel,
		MaxRetries:        eng.MaxRetries,
		RetryDelaySeconds: eng.RetryDelay.Seconds(),
		Headers: HeaderNames{
			Row:         hdr.HeaderRow,
			Article:     hdr.Article,
			Name:        hdr.Name,
			Description: hdr.Description,
		},
	}
}

// Load builds the effective configuration. A missing config file is fine;
// a present but unparseable one is an error.
func Load(log *logger.Logger) (*Config, error) {
	cfg := defaults()

	path := envutil.String("DESCGEN_CONFIG", "descgen.yaml")
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %q: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to read config file %q: %w", path, err)
	}

	cfg.Port = envutil.Int("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	if v := envutil.String("DESCGEN_MODELS", ""); v != "" {
		cfg.Models = splitList(v)
	}
	cfg.SecondaryModel = envutil.String("DESCGEN_SECONDARY_MODEL", cfg.SecondaryModel)
	cfg.MaxRetries = envutil.Int("DESCGEN_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelaySeconds = envutil.Float("DESCGEN_RETRY_DELAY_SECONDS", cfg.RetryDelaySeconds)

	return cfg, nil
}

// EngineConfig converts the loaded settings into the fallback engine's form.
func (c *Config) EngineConfig() generator.EngineConfig {
	return generator.EngineConfig{
		Models:         c.Models,
		SecondaryModel: c.SecondaryModel,
		MaxRetries:     c.MaxRetries,
		RetryDelay:     time.Duration(c.RetryDelaySeconds * float64(time.Second)),
	}
}

// HeaderConfig converts the loaded header names into the resolver's form.
func (c *Config) HeaderConfig() generator.HeaderConfig {
	return generator.HeaderConfig{
		HeaderRow:   c.Headers.Row,
		Article:     c.Headers.Article,
		Name:        c.Headers.Name,
		Description: c.Headers.Description,
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
