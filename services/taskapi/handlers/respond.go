// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements one gin handler per HTTP operation of
// the task API.
//
// Handlers are thin orchestrators: parse and validate, call the
// consistency engine and the stores, and shape the uniform
// {message, data} envelope. Validation and reference resolution happen
// before the first mutating store call, so a 400 means nothing was
// written.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/taskpiper/services/taskapi/apierr"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/gin-gonic/gin"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, datatypes.Envelope{Message: "OK", Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, datatypes.Envelope{Message: "Created", Data: data})
}

// respondError maps an error to the envelope. Exposable errors
// (apierr.Error) surface their message at their status; anything else
// is logged and downgraded to a generic 500 so internal detail never
// leaks to clients.
func respondError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, datatypes.Envelope{Message: apiErr.Message, Data: nil})
		return
	}
	slog.Error("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err)
	c.JSON(http.StatusInternalServerError, datatypes.Envelope{Message: "Server error", Data: nil})
}
