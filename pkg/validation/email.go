// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for user-provided
// fields.
//
// Validation here is deliberately shallow: presence checks live in the
// handlers (they own the error messages), and this package covers
// format rules that are shared between create and replace paths.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// basicEmailPattern is intentionally loose: something, an @, something,
// a dot, something. Stricter RFC validation rejects addresses real
// users hold.
var basicEmailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Plain functions can't fail registration.
	_ = v.RegisterValidation("basicemail", func(fl validator.FieldLevel) bool {
		return basicEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeEmail returns the canonical form of an address: trimmed and
// lowercased. Uniqueness checks and the email index both use this form.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Email validates an address against the basic pattern. The input is
// normalized first, so surrounding whitespace doesn't fail validation.
func Email(addr string) error {
	if err := validate.Var(NormalizeEmail(addr), "required,basicemail"); err != nil {
		return fmt.Errorf("invalid email %q", addr)
	}
	return nil
}
