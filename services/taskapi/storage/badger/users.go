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
	"strings"

	"github.com/AleutianAI/taskpiper/services/taskapi/datatypes"
	"github.com/AleutianAI/taskpiper/services/taskapi/query"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/dgraph-io/badger/v4"
)

// UserStore implements storage.UserStore on BadgerDB, maintaining the
// unique email index alongside each document write.
type UserStore struct {
	db *badger.DB
}

// NewUserStore wraps an open Badger instance. The *badger.DB may be
// shared with the task store.
func NewUserStore(db *badger.DB) *UserStore {
	return &UserStore{db: db}
}

// normalizeEmail is the store's canonical email form: trimmed and
// lowercased, making uniqueness case-insensitive.
func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func (s *UserStore) Insert(ctx context.Context, user *datatypes.User) error {
	user.Email = normalizeEmail(user.Email)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(emailKey(user.Email))
		if err == nil {
			return storage.ErrDuplicateEmail
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.ID), user)
	})
}

func (s *UserStore) Get(ctx context.Context, id string) (*datatypes.User, error) {
	var user datatypes.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Replace overwrites the user document, re-pointing the email index
// when the address changed. A changed email that is already indexed to
// a different user fails with ErrDuplicateEmail before anything is
// written.
func (s *UserStore) Replace(ctx context.Context, user *datatypes.User) error {
	user.Email = normalizeEmail(user.Email)
	return s.db.Update(func(txn *badger.Txn) error {
		var previous datatypes.User
		if err := getJSON(txn, userKey(user.ID), &previous); err != nil {
			return err
		}

		if previous.Email != user.Email {
			item, err := txn.Get(emailKey(user.Email))
			if err == nil {
				owner, err := ownerID(item)
				if err != nil {
					return err
				}
				if owner != user.ID {
					return storage.ErrDuplicateEmail
				}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Delete(emailKey(previous.Email)); err != nil {
				return err
			}
			if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}
		return setJSON(txn, userKey(user.ID), user)
	})
}

func ownerID(item *badger.Item) (string, error) {
	var owner string
	err := item.Value(func(val []byte) error {
		owner = string(val)
		return nil
	})
	return owner, err
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var user datatypes.User
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return err
		}
		if err := txn.Delete(emailKey(user.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func (s *UserStore) Find(ctx context.Context, q query.Query) ([]map[string]any, error) {
	return findDocs(s.db, userPrefix, q)
}

func (s *UserStore) Count(ctx context.Context, filter query.Filter) (int, error) {
	return countDocs(s.db, userPrefix, filter)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*datatypes.User, error) {
	var user datatypes.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(normalizeEmail(email)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := ownerID(item)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) AddPendingTask(ctx context.Context, userID, taskID string) (bool, error) {
	changed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var user datatypes.User
		if err := getJSON(txn, userKey(userID), &user); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		if user.HasPendingTask(taskID) {
			return nil
		}
		user.PendingTasks = append(user.PendingTasks, taskID)
		changed = true
		return setJSON(txn, userKey(userID), &user)
	})
	return changed, err
}

func (s *UserStore) RemovePendingTask(ctx context.Context, userID, taskID string) (bool, error) {
	changed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var user datatypes.User
		if err := getJSON(txn, userKey(userID), &user); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		pruned := withoutID(user.PendingTasks, taskID)
		if len(pruned) == len(user.PendingTasks) {
			return nil
		}
		user.PendingTasks = pruned
		changed = true
		return setJSON(txn, userKey(userID), &user)
	})
	return changed, err
}

// RemovePendingTaskAll sweeps taskID out of every user's pending set.
// Used when a task becomes unassigned, to clear stale references left
// by earlier partial failures.
func (s *UserStore) RemovePendingTaskAll(ctx context.Context, taskID string) (int, error) {
	touched := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte(userPrefix),
		})

		var dirty []*datatypes.User
		for it.Rewind(); it.Valid(); it.Next() {
			var user datatypes.User
			err := it.Item().Value(func(val []byte) error {
				return decodeInto(val, &user)
			})
			if err != nil {
				it.Close()
				return err
			}
			pruned := withoutID(user.PendingTasks, taskID)
			if len(pruned) == len(user.PendingTasks) {
				continue
			}
			user.PendingTasks = pruned
			u := user
			dirty = append(dirty, &u)
		}
		it.Close()

		for _, user := range dirty {
			if err := setJSON(txn, userKey(user.ID), user); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	return touched, err
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
