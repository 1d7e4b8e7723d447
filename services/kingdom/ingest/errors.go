// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest reads kingdom descriptions and queries from text input,
// builds frozen forests from them, and writes answers.
//
// Input framing:
//
//	N                   city count
//	a b status          N-1 roads, status 1 = open, anything else = closed
//	Q                   query count
//	k c1 c2 ... ck      Q queries, each prefixed by its size
//
// Tokens are whitespace separated; line breaks only matter for error
// positions.
package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a token is not the expected integer.
	ErrMalformed = errors.New("malformed input")

	// ErrLimitExceeded is returned when a count exceeds the configured Limits.
	ErrLimitExceeded = errors.New("input limit exceeded")

	// ErrTruncated is returned when input ends before a section is complete.
	ErrTruncated = errors.New("unexpected end of input")
)

// ParseError reports where in the input decoding failed.
type ParseError struct {
	// Line is the 1-based line of the offending token.
	Line int

	// Field names what was being read, e.g. "road 3 status".
	Field string

	// Err is the underlying cause.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
