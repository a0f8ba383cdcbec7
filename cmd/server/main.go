// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command server starts the TaskPiper HTTP server.
//
// Configuration comes from environment variables (a .env file is
// honored when present):
//
//   - TASKPIPER_PORT: HTTP listen port (default: 3000)
//   - TASKPIPER_DB_PATH: BadgerDB directory (default: ./data/taskpiper)
//   - TASKPIPER_DB_IN_MEMORY: "true" for a non-persistent store
//   - TASKPIPER_STRICT_ASSIGN: "true" to reject unknown pendingTasks ids
//   - TASKPIPER_LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Usage
//
//	go build -o taskpiper-server ./cmd/server
//	./taskpiper-server
package main

import (
	"log"
	"log/slog"

	"github.com/AleutianAI/taskpiper/pkg/logging"
	"github.com/AleutianAI/taskpiper/services/taskapi"
	"github.com/AleutianAI/taskpiper/services/taskapi/config"
)

func main() {
	cfg := config.Load()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "server",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	slog.Info("starting TaskPiper",
		"port", cfg.Port,
		"db_path", cfg.DBPath,
		"db_in_memory", cfg.DBInMemory,
		"strict_assign", cfg.StrictAssign,
	)

	svc, err := taskapi.New(taskapi.Config{
		Port:         cfg.Port,
		DBPath:       cfg.DBPath,
		InMemory:     cfg.DBInMemory,
		StrictAssign: cfg.StrictAssign,
		Logger:       logger.Slog(),
	})
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	if err := svc.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
