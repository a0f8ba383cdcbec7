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
	"errors"
	"fmt"

	"github.com/AleutianAI/taskpiper/pkg/validation"
	"github.com/AleutianAI/taskpiper/services/taskapi/apierr"
	"github.com/AleutianAI/taskpiper/services/taskapi/consistency"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/query"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/gin-gonic/gin"
)

// ListUsers handles GET /api/users. Unlike tasks, user lists are
// unbounded when no limit is given.
func ListUsers(users storage.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := query.Parse(c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}

		if q.Count {
			count, err := users.Count(c.Request.Context(), q.Filter)
			if err != nil {
				respondError(c, fmt.Errorf("count users: %w", err))
				return
			}
			respondOK(c, count)
			return
		}

		docs, err := users.Find(c.Request.Context(), q)
		if err != nil {
			respondError(c, fmt.Errorf("list users: %w", err))
			return
		}
		respondOK(c, docs)
	}
}

// CreateUser handles POST /api/users.
//
// The store enforces email uniqueness at insert; a declared
// pendingTasks list is then applied by claiming each task.
func CreateUser(users storage.UserStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.UserBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, apierr.Validation("invalid JSON body"))
			return
		}
		if body.Name == "" || body.Email == "" {
			respondError(c, apierr.Validation("name and email are required"))
			return
		}
		if err := validation.Email(body.Email); err != nil {
			respondError(c, apierr.Validation("Invalid email"))
			return
		}

		ctx := c.Request.Context()
		body.Email = validation.NormalizeEmail(body.Email)
		user := datatypes.NewUser(body)

		if err := engine.ValidatePendingTasks(ctx, user.PendingTasks); err != nil {
			respondError(c, err)
			return
		}

		if err := users.Insert(ctx, user); err != nil {
			if errors.Is(err, storage.ErrDuplicateEmail) {
				respondError(c, apierr.DuplicateEmail("A user with this email already exists"))
				return
			}
			respondError(c, fmt.Errorf("insert user: %w", err))
			return
		}

		if err := engine.ReconcileUserPendingSet(ctx, user.ID, user.Name, nil, user.PendingTasks); err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, user)
	}
}

// GetUser handles GET /api/users/:id with an optional select
// projection.
func GetUser(users storage.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := query.Parse(c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}

		user, err := users.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("User not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get user: %w", err))
			return
		}

		doc, err := datatypes.Doc(user)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, q.Select.Apply(doc))
	}
}

// ReplaceUser handles PUT /api/users/:id (full replacement).
//
// The pending set is reconciled against the previous one before the
// user document is persisted, mirroring the task-side ordering: shared
// state (the tasks) is corrected first, then the authoritative document
// is written.
func ReplaceUser(users storage.UserStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.UserBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, apierr.Validation("invalid JSON body"))
			return
		}
		if body.Name == "" || body.Email == "" {
			respondError(c, apierr.Validation("name and email are required"))
			return
		}
		if err := validation.Email(body.Email); err != nil {
			respondError(c, apierr.Validation("Invalid email"))
			return
		}

		ctx := c.Request.Context()
		user, err := users.Get(ctx, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("User not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get user: %w", err))
			return
		}

		email := validation.NormalizeEmail(body.Email)
		if email != user.Email {
			existing, err := users.FindByEmail(ctx, email)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				respondError(c, fmt.Errorf("check email: %w", err))
				return
			}
			if existing != nil && existing.ID != user.ID {
				respondError(c, apierr.DuplicateEmail("A user with this email already exists"))
				return
			}
		}

		desired := body.PendingTasks
		if desired == nil {
			desired = []string{}
		}
		if err := engine.ValidatePendingTasks(ctx, desired); err != nil {
			respondError(c, err)
			return
		}

		previous := user.PendingTasks
		if err := engine.ReconcileUserPendingSet(ctx, user.ID, body.Name, previous, desired); err != nil {
			respondError(c, err)
			return
		}

		user.Name = body.Name
		user.Email = email
		user.PendingTasks = desired
		if err := users.Replace(ctx, user); err != nil {
			if errors.Is(err, storage.ErrDuplicateEmail) {
				respondError(c, apierr.DuplicateEmail("A user with this email already exists"))
				return
			}
			respondError(c, fmt.Errorf("replace user: %w", err))
			return
		}
		respondOK(c, user)
	}
}

// DeleteUser handles DELETE /api/users/:id. Tasks the user still held
// revert to unassigned; tasks themselves are never deleted by this
// path (the reference is weak).
func DeleteUser(users storage.UserStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := users.Get(ctx, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("User not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get user: %w", err))
			return
		}

		if err := engine.CascadeUserDeleted(ctx, user); err != nil {
			respondError(c, err)
			return
		}
		if err := users.Delete(ctx, user.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			respondError(c, fmt.Errorf("delete user: %w", err))
			return
		}
		respondOK(c, gin.H{"_id": user.ID})
	}
}
