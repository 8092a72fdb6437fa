// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the planner configuration.
//
// Priority is env > file > defaults. Files are YAML or JSON; environment
// variables use the PLANNER_ prefix.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPlanner/services/planner/batch"
	"github.com/AleutianAI/AleutianPlanner/services/planner/heuristic"
	"github.com/AleutianAI/AleutianPlanner/services/planner/pq"
	"github.com/AleutianAI/AleutianPlanner/services/planner/search"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains all planner configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Search configures forward search sessions.
	Search search.EngineConfig `json:"search" yaml:"search"`

	// Heuristic selects and tunes the forward heuristic.
	Heuristic HeuristicConfig `json:"heuristic" yaml:"heuristic"`

	// Enumeration configures backward enumeration sessions.
	Enumeration search.EnumeratorConfig `json:"enumeration" yaml:"enumeration"`

	// Sampling configures sample streams.
	Sampling search.SamplerConfig `json:"sampling" yaml:"sampling"`

	// Batch configures concurrent job execution.
	Batch batch.Config `json:"batch" yaml:"batch"`

	// Storage configures the result store.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Telemetry configures tracing and metrics exporters.
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Log configures the process logger.
	Log LogConfig `json:"log" yaml:"log"`
}

// HeuristicConfig selects the heuristic used by forward search.
type HeuristicConfig struct {
	Name string             `json:"name" yaml:"name" validate:"required,heuristic"`
	FF   heuristic.FFConfig `json:"ff" yaml:"ff"`
}

// StorageConfig configures the result store.
type StorageConfig struct {
	// Enabled turns on persistence of results.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Badger is the underlying database configuration.
	Badger badger.Config `json:"badger" yaml:"badger"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr" validate:"required"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	MaxBodyBytes   int64         `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
	MaxSamples     int           `json:"max_samples" yaml:"max_samples" validate:"gt=0"`
	GinMode        string        `json:"gin_mode" yaml:"gin_mode" validate:"oneof=debug release test"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns the default configuration.
func Default() Config {
	storage := badger.DefaultConfig()
	storage.Path = "./data/planner"

	return Config{
		Search: search.DefaultEngineConfig(),
		Heuristic: HeuristicConfig{
			Name: heuristic.NameFF,
			FF:   heuristic.DefaultFFConfig(),
		},
		Enumeration: search.DefaultEnumeratorConfig(),
		Sampling:    search.DefaultSamplerConfig(),
		Batch:       batch.DefaultConfig(),
		Storage: StorageConfig{
			Enabled: false,
			Badger:  storage,
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8090",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
			MaxBodyBytes:   16 << 20,
			MaxSamples:     100_000,
			GinMode:        "release",
			RequestTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML/JSON config file. Empty or missing files use defaults.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file is unreadable or invalid, or if the merged
//     configuration fails validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("load config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// envBinding maps one PLANNER_ variable onto a field.
type envBinding struct {
	name string
	set  func(cfg *Config, v string) error
}

func intVar(target func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*target(cfg) = i
		return nil
	}
}

func durationVar(target func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*target(cfg) = d
		return nil
	}
}

func boolVar(target func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*target(cfg) = b
		return nil
	}
}

func stringVar(target func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*target(cfg) = v
		return nil
	}
}

var envBindings = []envBinding{
	// Search
	{"PLANNER_ALGORITHM", func(cfg *Config, v string) error {
		a, err := search.ParseAlgorithm(v)
		if err != nil {
			return err
		}
		cfg.Search.Algorithm = a
		return nil
	}},
	{"PLANNER_WEIGHT", func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		cfg.Search.Weight = f
		return nil
	}},
	{"PLANNER_QUEUE", func(cfg *Config, v string) error {
		k, err := pq.ParseKind(v)
		if err != nil {
			return err
		}
		cfg.Search.Queue = k
		cfg.Enumeration.Queue = k
		return nil
	}},
	{"PLANNER_TIME_LIMIT", durationVar(func(c *Config) *time.Duration { return &c.Search.Budget.TimeLimit })},
	{"PLANNER_MAX_NODES", intVar(func(c *Config) *int { return &c.Search.Budget.MaxNodes })},

	// Heuristic
	{"PLANNER_HEURISTIC", stringVar(func(c *Config) *string { return &c.Heuristic.Name })},

	// Enumeration
	{"PLANNER_ENUM_TIME_LIMIT", durationVar(func(c *Config) *time.Duration { return &c.Enumeration.Budget.TimeLimit })},
	{"PLANNER_ENUM_MAX_NODES", intVar(func(c *Config) *int { return &c.Enumeration.Budget.MaxNodes })},
	{"PLANNER_DISABLE_SUBSUMPTION", boolVar(func(c *Config) *bool { return &c.Enumeration.DisableSubsumption })},

	// Sampling
	{"PLANNER_SAMPLES", intVar(func(c *Config) *int { return &c.Sampling.Samples })},
	{"PLANNER_MAX_WALK_LENGTH", intVar(func(c *Config) *int { return &c.Sampling.MaxWalkLength })},

	// Batch
	{"PLANNER_MAX_CONCURRENCY", intVar(func(c *Config) *int { return &c.Batch.MaxConcurrency })},

	// Storage
	{"PLANNER_STORAGE_ENABLED", boolVar(func(c *Config) *bool { return &c.Storage.Enabled })},
	{"PLANNER_STORAGE_PATH", stringVar(func(c *Config) *string { return &c.Storage.Badger.Path })},
	{"PLANNER_STORAGE_IN_MEMORY", boolVar(func(c *Config) *bool { return &c.Storage.Badger.InMemory })},

	// Server
	{"PLANNER_ADDR", stringVar(func(c *Config) *string { return &c.Server.Addr })},

	// Log
	{"PLANNER_LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Log.Level })},
	{"PLANNER_LOG_FORMAT", stringVar(func(c *Config) *string { return &c.Log.Format })},
}

// loadEnv applies PLANNER_ overrides. Malformed values are errors.
func loadEnv(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.name, v, err))
		}
	}
	return errors.Join(errs...)
}

// EnvVars lists the supported environment variables.
func EnvVars() []string {
	out := make([]string, len(envBindings))
	for i, b := range envBindings {
		out[i] = b.name
	}
	return out
}
