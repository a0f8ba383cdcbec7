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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/taskpiper/services/taskapi/query"
	"github.com/AleutianAI/taskpiper/services/taskapi/storage"
	"github.com/dgraph-io/badger/v4"
)

const (
	taskPrefix  = "task:"
	userPrefix  = "user:"
	emailPrefix = "useremail:"
)

func taskKey(id string) []byte    { return []byte(taskPrefix + id) }
func userKey(id string) []byte    { return []byte(userPrefix + id) }
func emailKey(addr string) []byte { return []byte(emailPrefix + addr) }

// getJSON reads and decodes one document. Maps Badger's key-not-found
// to storage.ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func decodeInto(val []byte, v any) error {
	return json.Unmarshal(val, v)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, raw)
}

// findDocs scans one key prefix, keeps documents matching the filter,
// and shapes the result per the query descriptor.
func findDocs(db *badger.DB, prefix string, q query.Query) ([]map[string]any, error) {
	docs := []map[string]any{}
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte(prefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc map[string]any
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				if q.Filter.Match(doc) {
					docs = append(docs, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return q.Shape(docs), nil
}

func countDocs(db *badger.DB, prefix string, filter query.Filter) (int, error) {
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte(prefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc map[string]any
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				if filter.Match(doc) {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", prefix, err)
	}
	return count, nil
}
