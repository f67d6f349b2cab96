// Package config loads fleeceqa settings from a YAML file, the
// environment and built-in defaults, in increasing order of precedence:
// defaults, file, environment. Command-line flags are applied last by the
// caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/logging"
	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/questions"
)

// Config is the full application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Log        logging.Config   `yaml:"log"`
	LLM        llm.Config       `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig selects the database. An empty DSN means the default
// SQLite file.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// GenerationConfig holds the generation mode next to the generator
// settings.
type GenerationConfig struct {
	Mode             pipeline.Mode `yaml:"mode"`
	questions.Config `yaml:",inline"`
}

// PipelineConfig controls paragraph selection.
type PipelineConfig struct {
	Order pipeline.Order `yaml:"order"`
	Limit int            `yaml:"limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	pc := pipeline.DefaultConfig()
	return Config{
		Log: logging.DefaultConfig(),
		LLM: llm.DefaultConfig(),
		Generation: GenerationConfig{
			Mode:   pc.Mode,
			Config: questions.DefaultConfig(),
		},
		Pipeline: PipelineConfig{Order: pc.Order, Limit: pc.Limit},
		Server:   ServerConfig{Addr: ":8000"},
	}
}

// Load builds the configuration. When path is empty the default
// locations are searched and a missing file is not an error; an explicit
// path must exist. Environment overrides are applied on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode rejects keys that do not map to a field.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// findConfigFile returns the first existing default location, or "".
func findConfigFile() string {
	locations := []string{"fleeceqa.yaml", "fleeceqa.yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "fleeceqa", "config.yaml"))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FLEECE_DB"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("FLEECE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FLEECE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FLEECE_MODE"); v != "" {
		cfg.Generation.Mode = pipeline.Mode(v)
	}
	if v := os.Getenv("FLEECE_PROMPT_PREFIX"); v != "" {
		cfg.Generation.PromptPrefix = v
	}
	if v := os.Getenv("FLEECE_PROMPT_SUFFIX"); v != "" {
		cfg.Generation.PromptSuffix = v
	}
	if v := os.Getenv("FLEECE_ORDER"); v != "" {
		cfg.Pipeline.Order = pipeline.Order(v)
	}
	if v := os.Getenv("FLEECE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"FLEECE_NUM_QUESTIONS", &cfg.Generation.NumQuestions},
		{"FLEECE_MAX_ATTEMPTS", &cfg.Generation.MaxAttempts},
		{"FLEECE_LIMIT", &cfg.Pipeline.Limit},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	llm.ApplyEnv(&cfg.LLM)
	return nil
}

// PipelineConfig returns the driver settings.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Mode:  c.Generation.Mode,
		Order: c.Pipeline.Order,
		Limit: c.Pipeline.Limit,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	return c.ValidateLocal()
}

// ValidateLocal checks everything except the LLM settings, which only
// commands that call a provider need.
func (c Config) ValidateLocal() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Generation.Config.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := c.PipelineConfig().Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	return nil
}
