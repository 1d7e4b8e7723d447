// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"github.com/AleutianAI/kequality/services/kingdom/ingest"
)

type KequalityConfig struct {
	// Limits: bounds on accepted input
	Limits LimitsConfig `yaml:"limits"`

	// Solver: how queries are answered
	Solver SolverConfig `yaml:"solver"`

	// Ingest: how roads are turned into a forest
	Ingest IngestConfig `yaml:"ingest"`

	// Logging: level, format and optional file sink
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: trace and metric exporters
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server: HTTP listener for `kequality serve`
	Server ServerConfig `yaml:"server"`
}

type LimitsConfig struct {
	MaxCities    int `yaml:"max_cities" validate:"gte=1"`     // e.g. 200000
	MaxQueries   int `yaml:"max_queries" validate:"gte=0"`    // 0 = unlimited
	MaxQuerySize int `yaml:"max_query_size" validate:"gte=0"` // 0 = unlimited
}

type SolverConfig struct {
	// Pairing can be "all" (every pair) or "anchored" (first city against the rest)
	Pairing   string `yaml:"pairing" validate:"oneof=all anchored"`
	CacheSize int    `yaml:"cache_size" validate:"gte=0"`       // 0 disables the answer cache
	Workers   int    `yaml:"workers" validate:"gte=0,lte=1024"` // 0 = one per CPU
}

type IngestConfig struct {
	ReorderRoads bool `yaml:"reorder_roads"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
	Dir    string `yaml:"dir,omitempty"` // empty = no log file
}

type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp,omitempty,hostname_port"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"` // e.g. :8080
}

// IngestLimits converts the limits section for the decoder.
func (c LimitsConfig) IngestLimits() ingest.Limits {
	return ingest.Limits{
		MaxCities:    c.MaxCities,
		MaxQueries:   c.MaxQueries,
		MaxQuerySize: c.MaxQuerySize,
	}
}

func DefaultConfig() KequalityConfig {
	limits := ingest.DefaultLimits()
	return KequalityConfig{
		Limits: LimitsConfig{
			MaxCities:    limits.MaxCities,
			MaxQueries:   limits.MaxQueries,
			MaxQuerySize: limits.MaxQuerySize,
		},
		Solver: SolverConfig{
			Pairing:   "anchored",
			CacheSize: 1024,
			Workers:   0,
		},
		Ingest: IngestConfig{
			ReorderRoads: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Telemetry: TelemetryConfig{
			Traces:       "none",
			Metrics:      "prometheus",
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}
