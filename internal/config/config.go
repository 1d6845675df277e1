// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then SENTRIQ_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/events"
	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/playbook"
	"github.com/sentriq/sentriq/internal/telemetry"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sentriq/config.yaml",
	"/etc/sentriq/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "SENTRIQ_CONFIG_PATH"

// envPrefix namespaces environment overrides, e.g.
// SENTRIQ_SERVER_PORT=9000 -> server.port.
const envPrefix = "SENTRIQ_"

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type LoopConfig struct {
	// Interval is the detection tick cadence.
	Interval time.Duration `koanf:"interval"`
	// EndpointsPerTick bounds how many endpoints are scored each tick.
	EndpointsPerTick int `koanf:"endpoints_per_tick" validate:"min=1"`
	// InjectionProbability is the per-tick chance of starting a
	// simulated attack on a healthy endpoint.
	InjectionProbability float64 `koanf:"injection_probability" validate:"min=0,max=1"`
	// AttackMinSeconds and AttackMaxSeconds bound injected attack length.
	AttackMinSeconds int `koanf:"attack_min_seconds" validate:"min=2"`
	AttackMaxSeconds int `koanf:"attack_max_seconds" validate:"min=2"`
	// IncidentCooldown suppresses repeat incidents per endpoint. Zero
	// disables suppression.
	IncidentCooldown time.Duration `koanf:"incident_cooldown" validate:"min=0"`
}

type StoreConfig struct {
	// Dir is the BadgerDB data directory. Empty selects the in-memory
	// incident store.
	Dir string `koanf:"dir"`
}

type EventsConfig struct {
	Buffer int `koanf:"buffer" validate:"min=1"`
}

// Config is the full runtime configuration tree.
type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Logging   logging.Config            `koanf:"logging"`
	Telemetry telemetry.GeneratorConfig `koanf:"telemetry"`
	Detection detect.Config             `koanf:"detection"`
	Loop      LoopConfig                `koanf:"loop"`
	Store     StoreConfig               `koanf:"store"`
	Hooks     playbook.HookConfig       `koanf:"hooks"`
	Events    EventsConfig              `koanf:"events"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging:   logging.DefaultConfig(),
		Telemetry: telemetry.DefaultGeneratorConfig(),
		Detection: detect.DefaultConfig(),
		Loop: LoopConfig{
			Interval:             time.Second,
			EndpointsPerTick:     8,
			InjectionProbability: 0.25,
			AttackMinSeconds:     30,
			AttackMaxSeconds:     90,
			IncidentCooldown:     time.Minute,
		},
		Store:  StoreConfig{Dir: ""},
		Hooks:  playbook.DefaultHookConfig(),
		Events: EventsConfig{Buffer: events.DefaultBuffer},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment, in that precedence order (environment wins).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Env vars arrive as strings; known slice fields are comma-separated.
	if raw := k.String("server.cors_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("server.cors_origins", parts); err != nil {
			return nil, fmt.Errorf("set cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps SENTRIQ_SECTION_FIELD_NAME to section.field_name.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks field constraints plus cross-field rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Detection.Threshold < 0 || c.Detection.Threshold > 1 {
		return fmt.Errorf("config validation: detection.threshold %v outside [0,1]", c.Detection.Threshold)
	}
	sev := c.Detection.Severity
	if sev.Medium <= 0 || sev.Critical > 1 {
		return fmt.Errorf("config validation: detection.severity tiers %+v outside (0,1]", sev)
	}
	if sev.Critical < sev.High || sev.High < sev.Medium {
		return fmt.Errorf("config validation: detection.severity tiers must descend critical >= high >= medium, got %+v", sev)
	}
	if c.Loop.Interval < 10*time.Millisecond {
		return fmt.Errorf("config validation: loop.interval %v below 10ms", c.Loop.Interval)
	}
	if c.Loop.AttackMaxSeconds < c.Loop.AttackMinSeconds {
		return fmt.Errorf("config validation: loop.attack_max_seconds %d below loop.attack_min_seconds %d",
			c.Loop.AttackMaxSeconds, c.Loop.AttackMinSeconds)
	}
	return nil
}
