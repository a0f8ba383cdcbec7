// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRepair(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRepair(RepairPendingAdd)
	m.RecordRepair(RepairPendingAdd)
	m.RecordRepair(RepairTaskClaim)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues(RepairPendingAdd)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues(RepairTaskClaim)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues(RepairPendingSweep)))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordRepair(RepairPendingAdd) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGinMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Routes are labeled by pattern, not by concrete path.
	assert.Equal(t, 3.0, testutil.ToFloat64(
		m.RequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.RequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
