// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package consistency maintains the agreement between a task's
// assignedUser field and the owning user's pendingTasks set.
//
// # Invariants
//
// After any single mutation completes with no concurrent interference:
//
//   - A task is unassigned (assignedUser == "") exactly when its
//     assignedUserName is "unassigned".
//   - A task id appears in a user's pendingTasks exactly when that task
//     is assigned to the user and not completed.
//
// # Protocol
//
// The store has no multi-document transactions, so every operation here
// is a sequence of independently idempotent, conditional updates.
// Conditional updates that find their precondition gone are successful
// no-ops; absence is the success condition. Steps are ordered to
// minimize the inconsistency window: a task is removed from its
// previous owner's pending set before it is reconciled under the new
// owner, so it never transiently appears pending under two users.
// Re-running any operation with identical inputs performs no further
// store mutations.
//
// A known wrinkle, kept on purpose: a task's assignedUserName is a
// cache refreshed on task writes and on pending-set claims, not on
// user renames. Renaming a user leaves previously assigned tasks
// carrying the old name until their next write.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/taskpiper/services/taskapi/apierr"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/observability"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
)

// Config configures the engine.
type Config struct {
	// Users and Tasks are the backing stores. Both are required.
	Users storage.UserStore
	Tasks storage.TaskStore

	// Strict makes ValidatePendingTasks reject unknown task ids with an
	// UnknownTask error instead of tolerating them as silent no-ops.
	Strict bool

	// Metrics optionally counts applied repairs. May be nil.
	Metrics *observability.Metrics

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Engine applies the consistency protocol. Safe for concurrent use.
type Engine struct {
	users   storage.UserStore
	tasks   storage.TaskStore
	strict  bool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New validates the configuration and builds an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Users == nil || cfg.Tasks == nil {
		return nil, errors.New("consistency: user and task stores are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		users:   cfg.Users,
		tasks:   cfg.Tasks,
		strict:  cfg.Strict,
		metrics: cfg.Metrics,
		logger:  logger,
	}, nil
}

// ResolveAssignment resolves a task write's candidate assignment to its
// final assignedUser/assignedUserName pair.
//
// An empty candidate id resolves to unassigned. A non-empty id must
// reference an existing user, otherwise the whole task write is
// rejected with UnknownUser; this runs before anything is persisted so
// a dangling reference never reaches the store. The display name
// defaults to the user's current name when the caller didn't override
// it.
func (e *Engine) ResolveAssignment(ctx context.Context, candidateID, candidateName string) (string, string, error) {
	if candidateID == "" {
		return "", datatypes.UnassignedName, nil
	}

	user, err := e.users.Get(ctx, candidateID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", apierr.UnknownUser("assignedUser not found")
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve assignment: %w", err)
	}

	name := candidateName
	if name == "" {
		name = user.Name
	}
	return candidateID, name, nil
}

// ReconcileTaskAssignment restores the pending-set invariant after a
// task has been created or replaced with its final state persisted.
//
// previousAssignedUser is the owner before the write ("" on create).
// The previous owner is detached first; then the task is reconciled
// under its current owner: present in pendingTasks when incomplete,
// absent when completed. An unassigned task triggers a defensive sweep
// across all users to clear stale references.
func (e *Engine) ReconcileTaskAssignment(ctx context.Context, previousAssignedUser string, task *datatypes.Task) error {
	if previousAssignedUser != "" && previousAssignedUser != task.AssignedUser {
		changed, err := e.users.RemovePendingTask(ctx, previousAssignedUser, task.ID)
		if err != nil {
			return fmt.Errorf("detach previous owner %s: %w", previousAssignedUser, err)
		}
		if changed {
			e.metrics.RecordRepair(observability.RepairPendingRemove)
		}
	}

	if task.AssignedUser == "" {
		touched, err := e.users.RemovePendingTaskAll(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("sweep pending references for task %s: %w", task.ID, err)
		}
		if touched > 0 {
			e.logger.Warn("cleared stale pending references",
				"task_id", task.ID, "users_touched", touched)
			e.metrics.RecordRepair(observability.RepairPendingSweep)
		}
		return nil
	}

	// Owner existence was validated at resolve time; a user deleted in
	// between degrades these to no-ops.
	if task.Completed {
		changed, err := e.users.RemovePendingTask(ctx, task.AssignedUser, task.ID)
		if err != nil {
			return fmt.Errorf("remove completed task %s from pending: %w", task.ID, err)
		}
		if changed {
			e.metrics.RecordRepair(observability.RepairPendingRemove)
		}
		return nil
	}

	changed, err := e.users.AddPendingTask(ctx, task.AssignedUser, task.ID)
	if err != nil {
		return fmt.Errorf("add task %s to pending: %w", task.ID, err)
	}
	if changed {
		e.metrics.RecordRepair(observability.RepairPendingAdd)
	}
	return nil
}

// CascadeTaskDeleted removes a deleted task from its owner's pending
// set. An unassigned task needs nothing.
func (e *Engine) CascadeTaskDeleted(ctx context.Context, task *datatypes.Task) error {
	if task.AssignedUser == "" {
		return nil
	}
	changed, err := e.users.RemovePendingTask(ctx, task.AssignedUser, task.ID)
	if err != nil {
		return fmt.Errorf("cascade task delete %s: %w", task.ID, err)
	}
	if changed {
		e.metrics.RecordRepair(observability.RepairPendingRemove)
	}
	return nil
}

// ValidatePendingTasks rejects unknown task ids with UnknownTask when
// strict mode is on. Handlers call it before persisting a user write so
// a strict failure leaves no partial state. Outside strict mode it is
// a no-op: a dangling pending id silently has no effect, matching the
// store's filtered-update semantics.
func (e *Engine) ValidatePendingTasks(ctx context.Context, ids []string) error {
	if !e.strict {
		return nil
	}
	for _, id := range ids {
		exists, err := e.tasks.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("check task %s: %w", id, err)
		}
		if !exists {
			return apierr.UnknownTask("pendingTasks references unknown task " + id)
		}
	}
	return nil
}

// ReconcileUserPendingSet applies a user's declared pending set after a
// user create or replace.
//
// Tasks leaving the set are released only while still assigned to this
// user, guarding against a racing reassignment. Tasks entering the set
// are claimed unconditionally: the declared pendingTasks list is
// authoritative for membership, so a task is taken over regardless of
// prior assignment. previous is nil on create.
func (e *Engine) ReconcileUserPendingSet(ctx context.Context, userID, userName string, previous, desired []string) error {
	for _, id := range diff(previous, desired) {
		changed, err := e.tasks.ClearAssignment(ctx, id, userID)
		if err != nil {
			return fmt.Errorf("release task %s: %w", id, err)
		}
		if changed {
			e.metrics.RecordRepair(observability.RepairTaskRelease)
		}
	}

	for _, id := range diff(desired, previous) {
		changed, err := e.tasks.Assign(ctx, id, userID, userName)
		if err != nil {
			return fmt.Errorf("claim task %s: %w", id, err)
		}
		if changed {
			e.metrics.RecordRepair(observability.RepairTaskClaim)
		}
	}
	return nil
}

// CascadeUserDeleted unassigns every task the deleted user still held.
// The clear is unconditional: the user is gone, so no reassignment race
// is possible.
func (e *Engine) CascadeUserDeleted(ctx context.Context, user *datatypes.User) error {
	for _, id := range user.PendingTasks {
		changed, err := e.tasks.ClearAssignment(ctx, id, "")
		if err != nil {
			return fmt.Errorf("cascade user delete, task %s: %w", id, err)
		}
		if changed {
			e.metrics.RecordRepair(observability.RepairTaskRelease)
		}
	}
	return nil
}

// diff returns the ids in a that are not in b, preserving order and
// dropping duplicates.
func diff(a, b []string) []string {
	other := make(map[string]struct{}, len(b))
	for _, id := range b {
		other[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, id := range a {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := other[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
