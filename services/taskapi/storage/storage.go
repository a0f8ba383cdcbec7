// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the document store contract used by the
// handlers and the consistency engine.
//
// The store offers CRUD by id, filtered reads via a query descriptor,
// a uniqueness constraint on user email, and a set of conditional
// (filtered) single-document updates. The conditional updates are the
// only concurrency-safety mechanism in the system: when their
// precondition no longer holds they degrade to no-ops instead of
// erroring, and they report whether they changed anything so callers
// can observe idempotence.
//
// There are no multi-document transactions. Cross-entity consistency is
// the consistency package's job.
package storage

import (
	"context"
	"errors"

	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/query"
)

var (
	// ErrNotFound is returned by Get/Replace/Delete when no document
	// has the given id.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateEmail is returned by user Insert/Replace when the
	// email is already indexed to a different user.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
)

// TaskStore persists task documents.
type TaskStore interface {
	Insert(ctx context.Context, task *datatypes.Task) error
	Get(ctx context.Context, id string) (*datatypes.Task, error)
	Replace(ctx context.Context, task *datatypes.Task) error
	Delete(ctx context.Context, id string) error

	// Find returns the generic documents matching the query, shaped by
	// its sort/skip/limit/select.
	Find(ctx context.Context, q query.Query) ([]map[string]any, error)
	// Count returns the number of documents matching the filter,
	// ignoring skip/limit.
	Count(ctx context.Context, filter query.Filter) (int, error)
	// Exists reports whether a task with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Assign sets the task's assignedUser/assignedUserName. A missing
	// task is a no-op. Reports whether the document changed.
	Assign(ctx context.Context, taskID, userID, userName string) (bool, error)
	// ClearAssignment resets the task to unassigned, but only when its
	// assignedUser still equals ownerID; ownerID "" clears
	// unconditionally. Missing task or failed precondition is a no-op.
	ClearAssignment(ctx context.Context, taskID, ownerID string) (bool, error)
}

// UserStore persists user documents and the unique email index.
type UserStore interface {
	Insert(ctx context.Context, user *datatypes.User) error
	Get(ctx context.Context, id string) (*datatypes.User, error)
	Replace(ctx context.Context, user *datatypes.User) error
	Delete(ctx context.Context, id string) error

	Find(ctx context.Context, q query.Query) ([]map[string]any, error)
	Count(ctx context.Context, filter query.Filter) (int, error)
	// FindByEmail looks a user up by normalized email. Returns
	// ErrNotFound when the email is unused.
	FindByEmail(ctx context.Context, email string) (*datatypes.User, error)

	// AddPendingTask adds taskID to the user's pending set if absent.
	// Missing user is a no-op. Reports whether the document changed.
	AddPendingTask(ctx context.Context, userID, taskID string) (bool, error)
	// RemovePendingTask removes taskID from the user's pending set if
	// present. Missing user or absent id is a no-op.
	RemovePendingTask(ctx context.Context, userID, taskID string) (bool, error)
	// RemovePendingTaskAll removes taskID from every user's pending
	// set and returns how many users were touched.
	RemovePendingTaskAll(ctx context.Context, taskID string) (int, error)
}
