// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the task API.
//
// Metrics cover the HTTP surface (request counts and latency) and the
// consistency engine (repair operations actually applied, i.e. filtered
// updates that changed a document). Expose via /metrics with Prometheus.
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "taskpiper"

// Repair operation labels recorded by the consistency engine.
const (
	RepairPendingAdd    = "pending_add"
	RepairPendingRemove = "pending_remove"
	RepairPendingSweep  = "pending_sweep"
	RepairTaskClaim     = "task_claim"
	RepairTaskRelease   = "task_release"
)

// Metrics holds all Prometheus metrics for the service.
//
// Initialize once at startup via NewMetrics. A nil *Metrics is valid
// and records nothing, which keeps tests and tools free of registry
// setup.
type Metrics struct {
	// RequestsTotal counts HTTP requests by method, route, and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency by route.
	RequestDurationSeconds *prometheus.HistogramVec

	// RepairsTotal counts consistency repairs that changed a document,
	// by operation.
	RepairsTotal *prometheus.CounterVec
}

// NewMetrics registers the service metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		RequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RepairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "consistency",
			Name:      "repairs_total",
			Help:      "Consistency repairs applied, by operation.",
		}, []string{"operation"}),
	}
}

// RecordRepair counts one applied consistency repair. Safe on a nil
// receiver.
func (m *Metrics) RecordRepair(operation string) {
	if m == nil {
		return
	}
	m.RepairsTotal.WithLabelValues(operation).Inc()
}

// GinMiddleware records request count and latency for every request.
// Safe on a nil receiver (returns a pass-through).
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.RequestDurationSeconds.WithLabelValues(route).
			Observe(time.Since(start).Seconds())
	}
}
