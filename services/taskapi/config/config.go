// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads service configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the task API server.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// DBPath is the directory for BadgerDB files.
	DBPath string

	// DBInMemory runs the store without persistence. Data is lost on
	// shutdown; intended for development and tests.
	DBInMemory bool

	// StrictAssign makes user writes fail with 400 when pendingTasks
	// references an unknown task, instead of silently ignoring it.
	StrictAssign bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnvAsInt("TASKPIPER_PORT", 3000),
		DBPath:       getEnv("TASKPIPER_DB_PATH", "./data/taskpiper"),
		DBInMemory:   getEnvAsBool("TASKPIPER_DB_IN_MEMORY", false),
		StrictAssign: getEnvAsBool("TASKPIPER_STRICT_ASSIGN", false),
		LogLevel:     getEnv("TASKPIPER_LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
