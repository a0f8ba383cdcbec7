// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the documents and request bodies for the
// task API.
//
// Tasks and Users are stored as JSON documents. The wire field names
// (`_id`, `pendingTasks`, `assignedUser`, ...) double as the query
// field names accepted by the list endpoints, so they must stay stable.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// UnassignedName is the display name cached on a task that has no
// assigned user. Invariant: AssignedUserName == UnassignedName exactly
// when AssignedUser == "".
const UnassignedName = "unassigned"

// Task is a unit of work, optionally assigned to a single user.
//
// AssignedUser is a weak reference: it holds the user's id, or "" for
// unassigned. AssignedUserName is a denormalized copy of the user's
// name at assignment time.
type Task struct {
	ID               string    `json:"_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Deadline         string    `json:"deadline"`
	Completed        bool      `json:"completed"`
	AssignedUser     string    `json:"assignedUser"`
	AssignedUserName string    `json:"assignedUserName"`
	DateCreated      time.Time `json:"dateCreated"`
}

// TaskBody is the request body for task create and replace.
type TaskBody struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Deadline         string `json:"deadline"`
	Completed        bool   `json:"completed"`
	AssignedUser     string `json:"assignedUser"`
	AssignedUserName string `json:"assignedUserName"`
}

// NewTask builds a task from a request body with a fresh id and
// creation timestamp. Assignment fields are left empty; callers run
// them through the consistency engine before persisting.
func NewTask(body TaskBody) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: body.Description,
		Deadline:    body.Deadline,
		Completed:   body.Completed,
		DateCreated: time.Now().UTC(),
	}
}

// ApplyBody overwrites the mutable fields of a task from a request
// body, preserving id and creation timestamp. Used by full replacement.
func (t *Task) ApplyBody(body TaskBody) {
	t.Name = body.Name
	t.Description = body.Description
	t.Deadline = body.Deadline
	t.Completed = body.Completed
}
