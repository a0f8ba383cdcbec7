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

	"github.com/AleutianAI/taskpiper/services/taskapi/apierr"
	"github.com/AleutianAI/taskpiper/services/taskapi/consistency"
	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/query"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/gin-gonic/gin"
)

// defaultTaskLimit caps task list responses when the client didn't set
// a limit. User lists have no default cap.
const defaultTaskLimit = 100

// ListTasks handles GET /api/tasks.
func ListTasks(tasks storage.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := query.Parse(c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}

		if q.Count {
			count, err := tasks.Count(c.Request.Context(), q.Filter)
			if err != nil {
				respondError(c, fmt.Errorf("count tasks: %w", err))
				return
			}
			respondOK(c, count)
			return
		}

		if q.Limit == nil {
			limit := defaultTaskLimit
			q.Limit = &limit
		}
		docs, err := tasks.Find(c.Request.Context(), q)
		if err != nil {
			respondError(c, fmt.Errorf("list tasks: %w", err))
			return
		}
		respondOK(c, docs)
	}
}

// CreateTask handles POST /api/tasks.
//
// The assignment is resolved before anything is persisted, so an
// unknown assignedUser rejects the write with no task stored.
func CreateTask(tasks storage.TaskStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.TaskBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, apierr.Validation("invalid JSON body"))
			return
		}
		if body.Name == "" || body.Deadline == "" {
			respondError(c, apierr.Validation("name and deadline are required"))
			return
		}

		ctx := c.Request.Context()
		userID, userName, err := engine.ResolveAssignment(ctx, body.AssignedUser, body.AssignedUserName)
		if err != nil {
			respondError(c, err)
			return
		}

		task := datatypes.NewTask(body)
		task.AssignedUser = userID
		task.AssignedUserName = userName

		if err := tasks.Insert(ctx, task); err != nil {
			respondError(c, fmt.Errorf("insert task: %w", err))
			return
		}
		if err := engine.ReconcileTaskAssignment(ctx, "", task); err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, task)
	}
}

// GetTask handles GET /api/tasks/:id with an optional select
// projection.
func GetTask(tasks storage.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := query.Parse(c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}

		task, err := tasks.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("Task not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get task: %w", err))
			return
		}

		doc, err := datatypes.Doc(task)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, q.Select.Apply(doc))
	}
}

// ReplaceTask handles PUT /api/tasks/:id (full replacement).
//
// When the assignment moves to a different user, the task is pulled
// from the old owner's pending set before the replacement is persisted,
// so it never appears pending under two users.
func ReplaceTask(tasks storage.TaskStore, users storage.UserStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.TaskBody
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, apierr.Validation("invalid JSON body"))
			return
		}
		if body.Name == "" || body.Deadline == "" {
			respondError(c, apierr.Validation("name and deadline are required"))
			return
		}

		ctx := c.Request.Context()
		task, err := tasks.Get(ctx, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("Task not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get task: %w", err))
			return
		}

		userID, userName, err := engine.ResolveAssignment(ctx, body.AssignedUser, body.AssignedUserName)
		if err != nil {
			respondError(c, err)
			return
		}

		previousOwner := task.AssignedUser
		if previousOwner != "" && previousOwner != userID {
			if _, err := users.RemovePendingTask(ctx, previousOwner, task.ID); err != nil {
				respondError(c, fmt.Errorf("detach previous owner: %w", err))
				return
			}
		}

		task.ApplyBody(body)
		task.AssignedUser = userID
		task.AssignedUserName = userName

		if err := tasks.Replace(ctx, task); err != nil {
			respondError(c, fmt.Errorf("replace task: %w", err))
			return
		}
		if err := engine.ReconcileTaskAssignment(ctx, previousOwner, task); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, task)
	}
}

// DeleteTask handles DELETE /api/tasks/:id.
func DeleteTask(tasks storage.TaskStore, engine *consistency.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		task, err := tasks.Get(ctx, c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, apierr.NotFound("Task not found"))
			return
		}
		if err != nil {
			respondError(c, fmt.Errorf("get task: %w", err))
			return
		}

		if err := engine.CascadeTaskDeleted(ctx, task); err != nil {
			respondError(c, err)
			return
		}
		if err := tasks.Delete(ctx, task.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			respondError(c, fmt.Errorf("delete task: %w", err))
			return
		}
		respondOK(c, gin.H{"_id": task.ID})
	}
}
