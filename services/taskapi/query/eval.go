// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import "sort"

// Filter is a predicate tree over generic JSON documents.
//
// Supported shapes, a practical subset of the MongoDB query language:
//
//	{"field": value}                      equality (membership for arrays)
//	{"field": {"$gt": v, "$lte": v}}      comparison operators
//	{"field": {"$in": [v, ...]}}          $in / $nin
//	{"field": {"$ne": v}}                 inequality
//	{"field": {"$exists": true}}          presence
//	{"$or": [filter, ...]}                disjunction
//	{"$and": [filter, ...]}               conjunction
//
// Values compare as JSON types: numbers as float64, strings lexically,
// booleans with false < true. Comparisons across types never match.
type Filter map[string]any

// Match reports whether the document satisfies every clause of the
// filter. An empty filter matches everything.
func (f Filter) Match(doc map[string]any) bool {
	for key, cond := range f {
		switch key {
		case "$or":
			if !matchAny(doc, cond) {
				return false
			}
		case "$and":
			if !matchAll(doc, cond) {
				return false
			}
		default:
			val, present := doc[key]
			if !matchValue(val, present, cond) {
				return false
			}
		}
	}
	return true
}

func matchAny(doc map[string]any, cond any) bool {
	clauses, ok := cond.([]any)
	if !ok {
		return false
	}
	for _, clause := range clauses {
		if sub, ok := clause.(map[string]any); ok && Filter(sub).Match(doc) {
			return true
		}
	}
	return false
}

func matchAll(doc map[string]any, cond any) bool {
	clauses, ok := cond.([]any)
	if !ok {
		return false
	}
	for _, clause := range clauses {
		sub, ok := clause.(map[string]any)
		if !ok || !Filter(sub).Match(doc) {
			return false
		}
	}
	return true
}

// matchValue evaluates one field condition: either an operator document
// or a plain value compared for equality.
func matchValue(val any, present bool, cond any) bool {
	if ops, ok := cond.(map[string]any); ok && isOperatorDoc(ops) {
		for op, arg := range ops {
			if !matchOperator(val, present, op, arg) {
				return false
			}
		}
		return true
	}
	return present && equals(val, cond)
}

func matchOperator(val any, present bool, op string, arg any) bool {
	switch op {
	case "$ne":
		return !present || !equals(val, arg)
	case "$gt":
		c, ok := compareValues(val, arg)
		return present && ok && c > 0
	case "$gte":
		c, ok := compareValues(val, arg)
		return present && ok && c >= 0
	case "$lt":
		c, ok := compareValues(val, arg)
		return present && ok && c < 0
	case "$lte":
		c, ok := compareValues(val, arg)
		return present && ok && c <= 0
	case "$in":
		list, ok := arg.([]any)
		if !ok || !present {
			return false
		}
		for _, candidate := range list {
			if equals(val, candidate) {
				return true
			}
		}
		return false
	case "$nin":
		list, ok := arg.([]any)
		if !ok {
			return false
		}
		if !present {
			return true
		}
		for _, candidate := range list {
			if equals(val, candidate) {
				return false
			}
		}
		return true
	case "$exists":
		want, ok := arg.(bool)
		return ok && present == want
	default:
		// Unknown operator: no document matches it.
		return false
	}
}

// isOperatorDoc reports whether every key starts with '$'. A plain
// nested object is an equality target, not an operator set.
func isOperatorDoc(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for key := range m {
		if len(key) == 0 || key[0] != '$' {
			return false
		}
	}
	return true
}

// equals compares a document value against a query value. An array
// document value matches when any element equals the query value,
// mirroring MongoDB's array membership semantics; this is what makes
// {"pendingTasks": id} work.
func equals(val, cond any) bool {
	if arr, ok := val.([]any); ok {
		if _, condIsArray := cond.([]any); !condIsArray {
			for _, el := range arr {
				if scalarEqual(el, cond) {
					return true
				}
			}
			return false
		}
		return arrayEqual(arr, cond.([]any))
	}
	return scalarEqual(val, cond)
}

func arrayEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equals(a[i], b[i]) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

// compareValues orders two JSON values of the same type. The second
// result is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// SortDocs stable-sorts documents by the given fields. Values of
// different types order as nil < bool < number < string; anything else
// ties.
func SortDocs(docs []map[string]any, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c := orderCompare(docs[i][f.Field], docs[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func orderCompare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
