// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// End-to-end smoke test against a running TaskPiper server.
//
// Skipped unless RUN_E2E_TESTS is set. Point TASKPIPER_URL at the
// server under test (default http://localhost:3000). The test creates
// its own documents and deletes them, but runs against live state, so
// don't aim it at a database you care about.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseURL string

func TestMain(m *testing.M) {
	if os.Getenv("RUN_E2E_TESTS") == "" {
		fmt.Println("Set RUN_E2E_TESTS=1 to run e2e tests")
		os.Exit(0)
	}
	baseURL = os.Getenv("TASKPIPER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	os.Exit(m.Run())
}

var client = &http.Client{Timeout: 10 * time.Second}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, method, path string, body map[string]any) (int, envelope) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestAssignmentLifecycle(t *testing.T) {
	stamp := time.Now().UnixNano()

	code, env := call(t, http.MethodPost, "/api/users", map[string]any{
		"name":  "E2E User",
		"email": fmt.Sprintf("e2e-%d@example.com", stamp),
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var user struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	defer call(t, http.MethodDelete, "/api/users/"+user.ID, nil)

	code, env = call(t, http.MethodPost, "/api/tasks", map[string]any{
		"name":         fmt.Sprintf("e2e task %d", stamp),
		"deadline":     "2026-12-31",
		"assignedUser": user.ID,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var task struct {
		ID           string `json:"_id"`
		AssignedUser string `json:"assignedUser"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	defer call(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)

	assert.Equal(t, user.ID, task.AssignedUser)

	code, env = call(t, http.MethodGet, "/api/users/"+user.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var fetched struct {
		PendingTasks []string `json:"pendingTasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Contains(t, fetched.PendingTasks, task.ID)

	// Completing the task drops it from the pending set.
	code, env = call(t, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
		"name":         fmt.Sprintf("e2e task %d", stamp),
		"deadline":     "2026-12-31",
		"assignedUser": user.ID,
		"completed":    true,
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = call(t, http.MethodGet, "/api/users/"+user.ID, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.NotContains(t, fetched.PendingTasks, task.ID)
}

func TestHealth(t *testing.T) {
	resp, err := client.Get(baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
