// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query parses and evaluates the structured list-query
// parameters accepted by the collection endpoints.
//
// The where/sort/select parameters are JSON-encoded documents in the
// MongoDB query style:
//
//	?where={"completed":true}&sort={"name":1}&select={"_id":0}&skip=10&limit=20&count=true
//
// Parse produces a canonical Query descriptor; the evaluator in this
// package applies it to generic JSON documents. Only a present but
// unparseable where/sort/select fails parsing; skip/limit fall back to
// unset when they are not decimal integers, matching the permissiveness
// of the original query layer.
package query

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/AleutianAI/taskpiper/services/taskapi/apierr"
)

// malformedMsg is the client-facing message for unparseable
// where/sort/select parameters.
const malformedMsg = "Invalid query parameter format (must be valid JSON for where/sort/select)"

// SortField is one key of an ordering spec. Desc is true for -1/"desc".
type SortField struct {
	Field string
	Desc  bool
}

// Projection is a field-inclusion or field-exclusion spec.
//
// A select document with any truthy value other than for _id switches
// the projection to inclusion mode; otherwise listed fields are
// excluded. _id may be excluded alongside an inclusion set, as in
// MongoDB.
type Projection struct {
	Include map[string]bool
	Exclude map[string]bool
}

// Query is the canonical descriptor for a list request.
//
// Skip and Limit distinguish unset (nil) from zero. Filter is never
// nil; an empty filter matches everything.
type Query struct {
	Filter Filter
	Sort   []SortField
	Select *Projection
	Skip   *int
	Limit  *int
	Count  bool
}

// Parse decodes the raw query parameters into a Query descriptor.
//
// Returns an apierr.MalformedQuery error when where, sort, or select is
// present but not well-formed. Count is true only for the exact literal
// "true".
func Parse(values url.Values) (Query, error) {
	q := Query{Filter: Filter{}}

	if raw := values.Get("where"); raw != "" {
		filter, err := parseWhere(raw)
		if err != nil {
			return Query{}, apierr.MalformedQuery(malformedMsg)
		}
		q.Filter = filter
	}

	if raw := values.Get("sort"); raw != "" {
		fields, err := parseSort(raw)
		if err != nil {
			return Query{}, apierr.MalformedQuery(malformedMsg)
		}
		q.Sort = fields
	}

	if raw := values.Get("select"); raw != "" {
		proj, err := parseSelect(raw)
		if err != nil {
			return Query{}, apierr.MalformedQuery(malformedMsg)
		}
		q.Select = proj
	}

	q.Skip = parseWindow(values.Get("skip"))
	q.Limit = parseWindow(values.Get("limit"))
	q.Count = values.Get("count") == "true"

	return q, nil
}

func parseWhere(raw string) (Filter, error) {
	var filter map[string]any
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, errors.New("where must be an object")
	}
	return Filter(filter), nil
}

// parseSort decodes the ordering spec token by token so that key order
// is preserved; a map would lose it and multi-key sorts depend on it.
func parseSort(raw string) ([]SortField, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("sort must be an object")
	}

	var fields []SortField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("sort key must be a string")
		}

		var dir any
		if err := dec.Decode(&dir); err != nil {
			return nil, err
		}
		desc, err := parseDirection(dir)
		if err != nil {
			return nil, err
		}
		fields = append(fields, SortField{Field: key, Desc: desc})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func parseDirection(dir any) (bool, error) {
	switch v := dir.(type) {
	case float64:
		return v < 0, nil
	case string:
		switch strings.ToLower(v) {
		case "asc", "ascending":
			return false, nil
		case "desc", "descending":
			return true, nil
		}
	}
	return false, errors.New("sort direction must be 1, -1, asc, or desc")
}

func parseSelect(raw string) (*Projection, error) {
	var spec map[string]any
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, errors.New("select must be an object")
	}

	proj := &Projection{
		Include: map[string]bool{},
		Exclude: map[string]bool{},
	}
	for field, v := range spec {
		if truthy(v) {
			proj.Include[field] = true
		} else {
			proj.Exclude[field] = true
		}
	}
	return proj, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case float64:
		return val != 0
	case bool:
		return val
	default:
		return false
	}
}

// parseWindow parses skip/limit. Absent or non-integer values are
// unset; negatives are clamped out as unset too.
func parseWindow(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// Apply applies the projection to one document, returning a new map.
// A nil projection returns the document unchanged.
func (p *Projection) Apply(doc map[string]any) map[string]any {
	if p == nil {
		return doc
	}

	// Inclusion mode when any field other than _id is included.
	inclusion := false
	for field := range p.Include {
		if field != "_id" {
			inclusion = true
			break
		}
	}

	if inclusion {
		out := make(map[string]any, len(p.Include)+1)
		for field := range p.Include {
			if v, ok := doc[field]; ok {
				out[field] = v
			}
		}
		if !p.Exclude["_id"] {
			if v, ok := doc["_id"]; ok {
				out["_id"] = v
			}
		}
		return out
	}

	out := make(map[string]any, len(doc))
	for field, v := range doc {
		if !p.Exclude[field] {
			out[field] = v
		}
	}
	return out
}

// Shape sorts, windows, and projects an already-filtered document set,
// in that order. The input slice is shaped in place and returned.
func (q Query) Shape(docs []map[string]any) []map[string]any {
	SortDocs(docs, q.Sort)

	if q.Skip != nil {
		if *q.Skip >= len(docs) {
			docs = docs[:0]
		} else {
			docs = docs[*q.Skip:]
		}
	}
	if q.Limit != nil && *q.Limit < len(docs) {
		docs = docs[:*q.Limit]
	}

	if q.Select != nil {
		for i := range docs {
			docs[i] = q.Select.Apply(docs[i])
		}
	}
	return docs
}
