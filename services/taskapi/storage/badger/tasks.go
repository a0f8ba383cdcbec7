// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"

	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/query"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/dgraph-io/badger/v4"
)

// TaskStore implements storage.TaskStore on BadgerDB.
type TaskStore struct {
	db *badger.DB
}

// NewTaskStore wraps an open Badger instance. The *badger.DB may be
// shared with the user store.
func NewTaskStore(db *badger.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Insert(ctx context.Context, task *datatypes.Task) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, taskKey(task.ID), task)
	})
}

func (s *TaskStore) Get(ctx context.Context, id string) (*datatypes.Task, error) {
	var task datatypes.Task
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, taskKey(id), &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskStore) Replace(ctx context.Context, task *datatypes.Task) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(taskKey(task.ID)); errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}
		return setJSON(txn, taskKey(task.ID), task)
	})
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(taskKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(taskKey(id))
	})
}

func (s *TaskStore) Find(ctx context.Context, q query.Query) ([]map[string]any, error) {
	return findDocs(s.db, taskPrefix, q)
}

func (s *TaskStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	return countDocs(s.db, taskPrefix, filter)
}

func (s *TaskStore) Exists(ctx context.Context, id string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(taskKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Assign unconditionally claims the task for the given user. A missing
// task is a no-op: the user-replace path tolerates dangling pending
// ids by design.
func (s *TaskStore) Assign(ctx context.Context, taskID, userID, userName string) (bool, error) {
	changed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var task datatypes.Task
		if err := getJSON(txn, taskKey(taskID), &task); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		if task.AssignedUser == userID && task.AssignedUserName == userName {
			return nil
		}
		task.AssignedUser = userID
		task.AssignedUserName = userName
		changed = true
		return setJSON(txn, taskKey(taskID), &task)
	})
	return changed, err
}

// ClearAssignment resets the task to unassigned. With a non-empty
// ownerID the reset only applies while the task is still assigned to
// that owner, which guards against racing a reassignment.
func (s *TaskStore) ClearAssignment(ctx context.Context, taskID, ownerID string) (bool, error) {
	changed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var task datatypes.Task
		if err := getJSON(txn, taskKey(taskID), &task); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		if ownerID != "" && task.AssignedUser != ownerID {
			return nil
		}
		if task.AssignedUser == "" && task.AssignedUserName == datatypes.UnassignedName {
			return nil
		}
		task.AssignedUser = ""
		task.AssignedUserName = datatypes.UnassignedName
		changed = true
		return setJSON(txn, taskKey(taskID), &task)
	})
	return changed, err
}
