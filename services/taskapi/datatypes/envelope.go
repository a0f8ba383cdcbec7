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

import "encoding/json"

// Envelope is the uniform response shape for every endpoint:
// a human-readable message plus the payload (null on errors).
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Doc converts a typed document to its generic JSON representation.
//
// The list endpoints filter, sort, and project over generic documents;
// the by-id endpoints reuse the same projection code, so a typed Task
// or User is round-tripped through JSON before shaping.
func Doc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
