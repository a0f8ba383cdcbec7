// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskBody{
		Name:        "laundry",
		Description: "whites only",
		Deadline:    "2026-06-01",
		Completed:   true,
	})

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "laundry", task.Name)
	assert.True(t, task.Completed)
	assert.False(t, task.DateCreated.IsZero())
	// Assignment is resolved separately, never taken from the body here.
	assert.Equal(t, "", task.AssignedUser)
}

func TestTaskApplyBody(t *testing.T) {
	task := NewTask(TaskBody{Name: "before", Deadline: "2026-01-01"})
	id, created := task.ID, task.DateCreated

	task.ApplyBody(TaskBody{Name: "after", Deadline: "2026-02-01", Completed: true})

	assert.Equal(t, "after", task.Name)
	assert.Equal(t, "2026-02-01", task.Deadline)
	assert.True(t, task.Completed)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, created, task.DateCreated)
}

func TestNewUser_NilPendingBecomesEmpty(t *testing.T) {
	user := NewUser(UserBody{Name: "Alice", Email: "alice@example.com"})
	require.NotNil(t, user.PendingTasks)
	assert.Empty(t, user.PendingTasks)

	// Wire shape must be [] rather than null.
	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pendingTasks":[]`)
}

func TestUserHasPendingTask(t *testing.T) {
	user := &User{PendingTasks: []string{"t1", "t2"}}
	assert.True(t, user.HasPendingTask("t1"))
	assert.False(t, user.HasPendingTask("t3"))
}

func TestDoc(t *testing.T) {
	task := &Task{ID: "t1", Name: "laundry", AssignedUserName: UnassignedName}
	doc, err := Doc(task)
	require.NoError(t, err)

	assert.Equal(t, "t1", doc["_id"])
	assert.Equal(t, "laundry", doc["name"])
	assert.Equal(t, UnassignedName, doc["assignedUserName"])
	assert.Equal(t, false, doc["completed"])
}
