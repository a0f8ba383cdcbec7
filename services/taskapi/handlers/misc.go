// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// APIRoot answers the base /api route so clients can verify the API is
// reachable.
func APIRoot(c *gin.Context) {
	respondOK(c, gin.H{"service": "taskpiper"})
}

// NotFound is the fallback for unmatched routes, keeping the envelope
// shape consistent even for 404s.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, datatypes.Envelope{Message: "Not found", Data: nil})
}
