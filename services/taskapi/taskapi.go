// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taskapi wires the task API service together: document store,
// consistency engine, metrics, middleware, and routes.
//
// # Usage
//
//	svc, err := taskapi.New(taskapi.Config{Port: 3000, DBPath: "./data"})
//	if err != nil { ... }
//	defer svc.Close()
//	svc.Run()
//
// Run blocks until the server stops. Each request is handled
// independently and runs to completion once started; there is no
// shared in-process mutable state beyond the store.
package taskapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/taskpiper/services/taskapi/consistency"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/middleware"
	"github.com/AleutianAI/taskpiper/services/taskapi/observability"
	"github.com/AleutianAI/taskpiper/services/taskapi/routes"
	badgerstore "github.com/AleutianAI/taskpiper/services/taskapi/storage/badger"
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// DBPath is the BadgerDB directory. Ignored when InMemory is true.
	DBPath string

	// InMemory runs the store without persistence.
	InMemory bool

	// StrictAssign rejects user writes whose pendingTasks reference
	// unknown tasks.
	StrictAssign bool

	// Metrics optionally overrides the Prometheus registerer. Nil uses
	// the default registerer; tests pass their own to avoid duplicate
	// registration.
	Metrics prometheus.Registerer

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Service is the assembled task API.
type Service struct {
	router *gin.Engine
	db     *badgerdb.DB
	port   int
	logger *slog.Logger
}

// New opens the store and assembles the service. Callers must Close()
// the service to release the database.
func New(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := badgerstore.Open(badgerstore.Config{
		Path:       cfg.DBPath,
		InMemory:   cfg.InMemory,
		SyncWrites: !cfg.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tasks := badgerstore.NewTaskStore(db)
	users := badgerstore.NewUserStore(db)

	registerer := cfg.Metrics
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := observability.NewMetrics(registerer)

	engine, err := consistency.New(consistency.Config{
		Users:   users,
		Tasks:   tasks,
		Strict:  cfg.StrictAssign,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			datatypes.Envelope{Message: "Server error", Data: nil})
	}))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger))
	router.Use(metrics.GinMiddleware())

	routes.SetupRoutes(router, tasks, users, engine)

	return &Service{
		router: router,
		db:     db,
		port:   cfg.Port,
		logger: logger,
	}, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *Service) Run() error {
	s.logger.Info("task API listening", "port", s.port)
	return s.router.Run(fmt.Sprintf(":%d", s.port))
}

// Router exposes the gin engine for tests.
func (s *Service) Router() *gin.Engine {
	return s.router
}

// Close releases the database.
func (s *Service) Close() error {
	return s.db.Close()
}
