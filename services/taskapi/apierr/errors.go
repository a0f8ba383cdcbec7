// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apierr defines the client-visible error taxonomy.
//
// An *Error carries an HTTP status and a message that is safe to
// expose to clients. Any error that is not an *Error is treated as an
// internal failure: it is logged and reported as a generic 500.
//
// Taxonomy:
//
//   - MalformedQuery (400): where/sort/select present but not valid JSON
//   - Validation (400): missing required field or bad field format
//   - UnknownUser / UnknownTask (400): dangling reference in a write
//   - DuplicateEmail (400): email uniqueness violation
//   - NotFound (404): entity does not exist
//
// Reference-resolution and validation errors are produced before the
// first mutating store call, so a handler that returns one has written
// nothing.
package apierr

import "net/http"

// Kind classifies an error for tests and metrics labels.
type Kind string

const (
	KindMalformedQuery Kind = "malformed_query"
	KindValidation     Kind = "validation"
	KindUnknownUser    Kind = "unknown_user"
	KindUnknownTask    Kind = "unknown_task"
	KindDuplicateEmail Kind = "duplicate_email"
	KindNotFound       Kind = "not_found"
)

// Error is a client-caused failure whose message is safe to expose.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// MalformedQuery reports an unparseable where/sort/select parameter.
func MalformedQuery(msg string) *Error {
	return &Error{Kind: KindMalformedQuery, Status: http.StatusBadRequest, Message: msg}
}

// Validation reports a missing or malformed request field.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg}
}

// UnknownUser reports a write referencing a user that does not exist.
func UnknownUser(msg string) *Error {
	return &Error{Kind: KindUnknownUser, Status: http.StatusBadRequest, Message: msg}
}

// UnknownTask reports a write referencing a task that does not exist.
// Only produced in strict assignment mode.
func UnknownTask(msg string) *Error {
	return &Error{Kind: KindUnknownTask, Status: http.StatusBadRequest, Message: msg}
}

// DuplicateEmail reports an email already used by another user.
func DuplicateEmail(msg string) *Error {
	return &Error{Kind: KindDuplicateEmail, Status: http.StatusBadRequest, Message: msg}
}

// NotFound reports a request for an entity that does not exist.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg}
}
