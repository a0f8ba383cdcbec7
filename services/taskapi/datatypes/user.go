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
	"time"

	"github.com/google/uuid"
)

// User owns a set of pending (incomplete) task ids.
//
// PendingTasks is membership-only: order carries no meaning and
// duplicates are never stored. Email is stored trimmed and lowercased
// and is unique across users.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PendingTasks []string  `json:"pendingTasks"`
	DateCreated  time.Time `json:"dateCreated"`
}

// UserBody is the request body for user create and replace.
type UserBody struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PendingTasks []string `json:"pendingTasks"`
}

// NewUser builds a user from a request body with a fresh id and
// creation timestamp. Email normalization is the caller's job
// (see validation.NormalizeEmail).
func NewUser(body UserBody) *User {
	pending := body.PendingTasks
	if pending == nil {
		pending = []string{}
	}
	return &User{
		ID:           uuid.NewString(),
		Name:         body.Name,
		Email:        body.Email,
		PendingTasks: pending,
		DateCreated:  time.Now().UTC(),
	}
}

// HasPendingTask reports whether taskID is in the user's pending set.
func (u *User) HasPendingTask(taskID string) bool {
	for _, id := range u.PendingTasks {
		if id == taskID {
			return true
		}
	}
	return false
}
