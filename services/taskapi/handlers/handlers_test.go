// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/taskpiper/services/taskapi/consistency"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/routes"
	badgerstore "github.com/AleutianAI/taskpiper/services/taskapi/storage/badger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	router *gin.Engine
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tasks := badgerstore.NewTaskStore(db)
	users := badgerstore.NewUserStore(db)
	engine, err := consistency.New(consistency.Config{
		Users:  users,
		Tasks:  tasks,
		Strict: strict,
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	routes.SetupRoutes(router, tasks, users, engine)
	return &harness{router: router}
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
		"body: %s", rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (h *harness) createUser(t *testing.T, name, email string, pending ...string) datatypes.User {
	t.Helper()
	body := map[string]any{"name": name, "email": email}
	if pending != nil {
		body["pendingTasks"] = pending
	}
	code, env := h.do(t, http.MethodPost, "/api/users", body)
	require.Equal(t, http.StatusCreated, code, env.Message)
	return decode[datatypes.User](t, env.Data)
}

func (h *harness) createTask(t *testing.T, body map[string]any) datatypes.Task {
	t.Helper()
	code, env := h.do(t, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, code, env.Message)
	return decode[datatypes.Task](t, env.Data)
}

func (h *harness) getUser(t *testing.T, id string) datatypes.User {
	t.Helper()
	code, env := h.do(t, http.MethodGet, "/api/users/"+id, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	return decode[datatypes.User](t, env.Data)
}

func (h *harness) getTask(t *testing.T, id string) datatypes.Task {
	t.Helper()
	code, env := h.do(t, http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	return decode[datatypes.Task](t, env.Data)
}

// =============================================================================
// Tasks
// =============================================================================

func TestCreateTask(t *testing.T) {
	h := newHarness(t, false)

	t.Run("unassigned", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"name": "laundry", "deadline": "2026-06-01",
		})
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, "Created", env.Message)

		task := decode[datatypes.Task](t, env.Data)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, "", task.AssignedUser)
		assert.Equal(t, datatypes.UnassignedName, task.AssignedUserName)
		assert.False(t, task.Completed)
		assert.False(t, task.DateCreated.IsZero())
	})

	t.Run("assigned puts task in pending set", func(t *testing.T) {
		user := h.createUser(t, "Alice", "alice@example.com")
		task := h.createTask(t, map[string]any{
			"name": "dishes", "deadline": "2026-06-01", "assignedUser": user.ID,
		})
		assert.Equal(t, user.ID, task.AssignedUser)
		assert.Equal(t, "Alice", task.AssignedUserName)
		assert.Contains(t, h.getUser(t, user.ID).PendingTasks, task.ID)
	})

	t.Run("completed task stays out of pending set", func(t *testing.T) {
		user := h.createUser(t, "Bob", "bob@example.com")
		task := h.createTask(t, map[string]any{
			"name": "done", "deadline": "2026-06-01",
			"assignedUser": user.ID, "completed": true,
		})
		assert.Equal(t, user.ID, task.AssignedUser)
		assert.NotContains(t, h.getUser(t, user.ID).PendingTasks, task.ID)
	})

	t.Run("missing fields", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/tasks", map[string]any{"name": "x"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "name and deadline are required", env.Message)
	})

	t.Run("unknown assignedUser persists nothing", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/tasks", map[string]any{
			"name": "orphan", "deadline": "2026-06-01", "assignedUser": "ghost",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "assignedUser not found", env.Message)

		code, env = h.do(t, http.MethodGet, "/api/tasks?where=%7B%22name%22%3A%22orphan%22%7D", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, decode[[]map[string]any](t, env.Data))
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTasks(t *testing.T) {
	h := newHarness(t, false)
	for i := 0; i < 5; i++ {
		body := map[string]any{
			"name":     fmt.Sprintf("task %d", i),
			"deadline": fmt.Sprintf("2026-06-0%d", i+1),
		}
		if i%2 == 0 {
			body["completed"] = true
		}
		h.createTask(t, body)
	}

	t.Run("plain list", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "OK", env.Message)
		assert.Len(t, decode[[]map[string]any](t, env.Data), 5)
	})

	t.Run("where filter", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks?where=%7B%22completed%22%3Afalse%7D", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, decode[[]map[string]any](t, env.Data), 2)
	})

	t.Run("sort and limit", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks?sort=%7B%22deadline%22%3A-1%7D&limit=2", nil)
		require.Equal(t, http.StatusOK, code)
		docs := decode[[]map[string]any](t, env.Data)
		require.Len(t, docs, 2)
		assert.Equal(t, "2026-06-05", docs[0]["deadline"])
	})

	t.Run("count", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks?count=true&where=%7B%22completed%22%3Atrue%7D", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 3, decode[int](t, env.Data))
	})

	t.Run("malformed where", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks?where=notjson", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid query parameter format (must be valid JSON for where/sort/select)", env.Message)
	})
}

func TestListTasks_DefaultLimit(t *testing.T) {
	h := newHarness(t, false)
	for i := 0; i < 105; i++ {
		h.createTask(t, map[string]any{
			"name": fmt.Sprintf("task %03d", i), "deadline": "2026-06-01",
		})
	}

	code, env := h.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 100)

	// An explicit limit overrides the cap.
	code, env = h.do(t, http.MethodGet, "/api/tasks?limit=105", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 105)
}

func TestGetTask(t *testing.T) {
	h := newHarness(t, false)
	task := h.createTask(t, map[string]any{"name": "laundry", "deadline": "2026-06-01"})

	t.Run("found", func(t *testing.T) {
		got := h.getTask(t, task.ID)
		assert.Equal(t, "laundry", got.Name)
	})

	t.Run("select projection", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet,
			"/api/tasks/"+task.ID+"?select=%7B%22name%22%3A1%2C%22_id%22%3A0%7D", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]any{"name": "laundry"}, decode[map[string]any](t, env.Data))
	})

	t.Run("not found", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/tasks/ghost", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Task not found", env.Message)
	})
}

func TestReplaceTask(t *testing.T) {
	h := newHarness(t, false)
	alice := h.createUser(t, "Alice", "alice@example.com")
	bob := h.createUser(t, "Bob", "bob@example.com")

	t.Run("reassignment moves pending membership", func(t *testing.T) {
		task := h.createTask(t, map[string]any{
			"name": "laundry", "deadline": "2026-06-01", "assignedUser": alice.ID,
		})

		code, env := h.do(t, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
			"name": "laundry", "deadline": "2026-06-01", "assignedUser": bob.ID,
		})
		require.Equal(t, http.StatusOK, code, env.Message)

		assert.NotContains(t, h.getUser(t, alice.ID).PendingTasks, task.ID)
		assert.Contains(t, h.getUser(t, bob.ID).PendingTasks, task.ID)

		got := h.getTask(t, task.ID)
		assert.Equal(t, bob.ID, got.AssignedUser)
		assert.Equal(t, "Bob", got.AssignedUserName)
	})

	t.Run("completing removes from pending set", func(t *testing.T) {
		task := h.createTask(t, map[string]any{
			"name": "dishes", "deadline": "2026-06-01", "assignedUser": alice.ID,
		})
		require.Contains(t, h.getUser(t, alice.ID).PendingTasks, task.ID)

		code, _ := h.do(t, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
			"name": "dishes", "deadline": "2026-06-01",
			"assignedUser": alice.ID, "completed": true,
		})
		require.Equal(t, http.StatusOK, code)
		assert.NotContains(t, h.getUser(t, alice.ID).PendingTasks, task.ID)
	})

	t.Run("unassigning sweeps pending references", func(t *testing.T) {
		task := h.createTask(t, map[string]any{
			"name": "sweep me", "deadline": "2026-06-01", "assignedUser": alice.ID,
		})

		code, _ := h.do(t, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
			"name": "sweep me", "deadline": "2026-06-01",
		})
		require.Equal(t, http.StatusOK, code)

		got := h.getTask(t, task.ID)
		assert.Equal(t, "", got.AssignedUser)
		assert.Equal(t, datatypes.UnassignedName, got.AssignedUserName)
		assert.NotContains(t, h.getUser(t, alice.ID).PendingTasks, task.ID)
	})

	t.Run("not found", func(t *testing.T) {
		code, env := h.do(t, http.MethodPut, "/api/tasks/ghost", map[string]any{
			"name": "x", "deadline": "2026-06-01",
		})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Task not found", env.Message)
	})

	t.Run("dateCreated survives replacement", func(t *testing.T) {
		task := h.createTask(t, map[string]any{"name": "keep", "deadline": "2026-06-01"})

		code, env := h.do(t, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{
			"name": "kept", "deadline": "2026-07-01",
		})
		require.Equal(t, http.StatusOK, code)
		got := decode[datatypes.Task](t, env.Data)
		assert.Equal(t, task.DateCreated, got.DateCreated)
	})
}

func TestDeleteTask(t *testing.T) {
	h := newHarness(t, false)
	alice := h.createUser(t, "Alice", "alice@example.com")
	task := h.createTask(t, map[string]any{
		"name": "laundry", "deadline": "2026-06-01", "assignedUser": alice.ID,
	})

	code, env := h.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"_id": task.ID}, decode[map[string]any](t, env.Data))

	assert.NotContains(t, h.getUser(t, alice.ID).PendingTasks, task.ID)

	code, env = h.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Task not found", env.Message)
}

// =============================================================================
// Users
// =============================================================================

func TestCreateUser(t *testing.T) {
	h := newHarness(t, false)

	t.Run("created with empty pending set", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/users", map[string]any{
			"name": "Alice", "email": "Alice@Example.com",
		})
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, "Created", env.Message)

		user := decode[datatypes.User](t, env.Data)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, []string{}, user.PendingTasks)
		assert.False(t, user.DateCreated.IsZero())
	})

	t.Run("pendingTasks claims the tasks", func(t *testing.T) {
		task := h.createTask(t, map[string]any{"name": "claimed", "deadline": "2026-06-01"})
		user := h.createUser(t, "Bob", "bob@example.com", task.ID)

		got := h.getTask(t, task.ID)
		assert.Equal(t, user.ID, got.AssignedUser)
		assert.Equal(t, "Bob", got.AssignedUserName)
	})

	t.Run("missing fields", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/users", map[string]any{"name": "x"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "name and email are required", env.Message)
	})

	t.Run("invalid email", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/users", map[string]any{
			"name": "x", "email": "not-an-email",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid email", env.Message)
	})

	t.Run("duplicate email", func(t *testing.T) {
		code, env := h.do(t, http.MethodPost, "/api/users", map[string]any{
			"name": "Evil Alice", "email": "ALICE@example.COM",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "A user with this email already exists", env.Message)
	})
}

func TestListUsers(t *testing.T) {
	h := newHarness(t, false)
	h.createUser(t, "Alice", "alice@example.com")
	h.createUser(t, "Bob", "bob@example.com")

	t.Run("list", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/users?sort=%7B%22name%22%3A1%7D", nil)
		require.Equal(t, http.StatusOK, code)
		docs := decode[[]map[string]any](t, env.Data)
		require.Len(t, docs, 2)
		assert.Equal(t, "Alice", docs[0]["name"])
	})

	t.Run("count", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api/users?count=true", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, decode[int](t, env.Data))
	})

	t.Run("filter by pending membership", func(t *testing.T) {
		task := h.createTask(t, map[string]any{"name": "x", "deadline": "2026-06-01"})
		carol := h.createUser(t, "Carol", "carol@example.com", task.ID)

		code, env := h.do(t, http.MethodGet,
			"/api/users?where=%7B%22pendingTasks%22%3A%22"+task.ID+"%22%7D", nil)
		require.Equal(t, http.StatusOK, code)
		docs := decode[[]map[string]any](t, env.Data)
		require.Len(t, docs, 1)
		assert.Equal(t, carol.ID, docs[0]["_id"])
	})
}

func TestReplaceUser(t *testing.T) {
	h := newHarness(t, false)

	t.Run("pending set edit reconciles tasks", func(t *testing.T) {
		t1 := h.createTask(t, map[string]any{"name": "one", "deadline": "2026-06-01"})
		t2 := h.createTask(t, map[string]any{"name": "two", "deadline": "2026-06-01"})
		user := h.createUser(t, "Alice", "alice@example.com", t1.ID)

		code, env := h.do(t, http.MethodPut, "/api/users/"+user.ID, map[string]any{
			"name": "Alice", "email": "alice@example.com", "pendingTasks": []string{t2.ID},
		})
		require.Equal(t, http.StatusOK, code, env.Message)

		assert.Equal(t, "", h.getTask(t, t1.ID).AssignedUser)
		assert.Equal(t, user.ID, h.getTask(t, t2.ID).AssignedUser)
		assert.Equal(t, []string{t2.ID}, h.getUser(t, user.ID).PendingTasks)
	})

	t.Run("email change to taken address rejected", func(t *testing.T) {
		h.createUser(t, "Bob", "bob@example.com")
		carol := h.createUser(t, "Carol", "carol@example.com")

		code, env := h.do(t, http.MethodPut, "/api/users/"+carol.ID, map[string]any{
			"name": "Carol", "email": "bob@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "A user with this email already exists", env.Message)
	})

	t.Run("keeping own email is allowed", func(t *testing.T) {
		dave := h.createUser(t, "Dave", "dave@example.com")
		code, env := h.do(t, http.MethodPut, "/api/users/"+dave.ID, map[string]any{
			"name": "David", "email": "DAVE@example.com",
		})
		require.Equal(t, http.StatusOK, code, env.Message)
		assert.Equal(t, "David", h.getUser(t, dave.ID).Name)
	})

	t.Run("not found", func(t *testing.T) {
		code, env := h.do(t, http.MethodPut, "/api/users/ghost", map[string]any{
			"name": "x", "email": "x@example.com",
		})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "User not found", env.Message)
	})
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t, false)
	task := h.createTask(t, map[string]any{"name": "held", "deadline": "2026-06-01"})
	user := h.createUser(t, "Alice", "alice@example.com", task.ID)
	require.Equal(t, user.ID, h.getTask(t, task.ID).AssignedUser)

	code, env := h.do(t, http.MethodDelete, "/api/users/"+user.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"_id": user.ID}, decode[map[string]any](t, env.Data))

	// Held tasks revert to unassigned but are not deleted.
	got := h.getTask(t, task.ID)
	assert.Equal(t, "", got.AssignedUser)
	assert.Equal(t, datatypes.UnassignedName, got.AssignedUserName)

	code, env = h.do(t, http.MethodDelete, "/api/users/"+user.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", env.Message)
}

// =============================================================================
// Strict mode
// =============================================================================

func TestStrictAssign(t *testing.T) {
	h := newHarness(t, true)
	task := h.createTask(t, map[string]any{"name": "real", "deadline": "2026-06-01"})

	t.Run("known ids accepted", func(t *testing.T) {
		h.createUser(t, "Alice", "alice@example.com", task.ID)
	})

	t.Run("unknown id rejects the create with no partial write", func(t *testing.T) {
		code, _ := h.do(t, http.MethodPost, "/api/users", map[string]any{
			"name": "Bob", "email": "bob@example.com",
			"pendingTasks": []string{task.ID, "ghost"},
		})
		assert.Equal(t, http.StatusBadRequest, code)

		code, env := h.do(t, http.MethodGet, "/api/users?count=true", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, decode[int](t, env.Data))
	})

	t.Run("unknown id rejects a replace", func(t *testing.T) {
		alice := h.getUserByEmail(t)
		code, _ := h.do(t, http.MethodPut, "/api/users/"+alice, map[string]any{
			"name": "Alice", "email": "alice@example.com",
			"pendingTasks": []string{"ghost"},
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

// getUserByEmail returns the single seeded user's id.
func (h *harness) getUserByEmail(t *testing.T) string {
	t.Helper()
	code, env := h.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, code)
	docs := decode[[]map[string]any](t, env.Data)
	require.NotEmpty(t, docs)
	return docs[0]["_id"].(string)
}

// =============================================================================
// Misc routes
// =============================================================================

func TestMiscRoutes(t *testing.T) {
	h := newHarness(t, false)

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api root", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/api", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "OK", env.Message)
	})

	t.Run("unknown route", func(t *testing.T) {
		code, env := h.do(t, http.MethodGet, "/nope", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Not found", env.Message)
	})
}
