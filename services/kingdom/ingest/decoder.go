// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AleutianAI/kequality/services/kingdom"
)

// maxTokenLen bounds a single integer token. Longer tokens cannot be a valid
// city id or count.
const maxTokenLen = 20

// Limits bounds the size of accepted input. Zero disables a limit.
type Limits struct {
	MaxCities    int
	MaxQueries   int
	MaxQuerySize int
}

// DefaultLimits returns limits matching the largest supported kingdom.
func DefaultLimits() Limits {
	return Limits{
		MaxCities:    200_000,
		MaxQueries:   200_000,
		MaxQuerySize: 200_000,
	}
}

// Road is one road line of the input.
type Road struct {
	A, B kingdom.CityID
	Open bool

	// Line is where the road was read, 0 when not read from text.
	Line int
}

// Kingdom is the city count and road list section of the input.
type Kingdom struct {
	CityCount int
	Roads     []Road
}

// OpenRoads returns the number of open roads.
func (k *Kingdom) OpenRoads() int {
	n := 0
	for _, r := range k.Roads {
		if r.Open {
			n++
		}
	}
	return n
}

// Input is a complete decoded input.
type Input struct {
	Kingdom *Kingdom
	Queries [][]kingdom.CityID
}

// Decoder reads the input framing token by token.
//
// Thread Safety: NOT safe for concurrent use.
type Decoder struct {
	r      *bufio.Reader
	limits Limits
	line   int

	cityCount int // set once the kingdom section is decoded
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, limits Limits) *Decoder {
	return &Decoder{
		r:      bufio.NewReaderSize(r, 64*1024),
		limits: limits,
		line:   1,
	}
}

// Decode reads the kingdom section followed by the query section.
func (d *Decoder) Decode() (*Input, error) {
	k, err := d.DecodeKingdom()
	if err != nil {
		return nil, err
	}
	queries, err := d.DecodeQueries()
	if err != nil {
		return nil, err
	}
	return &Input{Kingdom: k, Queries: queries}, nil
}

// DecodeKingdom reads the city count and its N-1 road lines.
//
// Description:
//
//	Every road endpoint must name a city in [1, N]. Closed roads are kept in
//	the result with Open == false so callers can report them; only open
//	roads are ever linked.
//
// Outputs:
//   - *Kingdom: The decoded section.
//   - error: *ParseError wrapping ErrMalformed, ErrTruncated,
//     ErrLimitExceeded, kingdom.ErrInvalidCityCount or kingdom.ErrCityOutOfRange.
func (d *Decoder) DecodeKingdom() (*Kingdom, error) {
	n, line, err := d.nextInt(field{kind: fieldCityCount})
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, d.errorAt(line, field{kind: fieldCityCount}, fmt.Errorf("%w: got %d", kingdom.ErrInvalidCityCount, n))
	}
	if d.limits.MaxCities > 0 && n > d.limits.MaxCities {
		return nil, d.errorAt(line, field{kind: fieldCityCount},
			fmt.Errorf("%w: %d cities, max %d", ErrLimitExceeded, n, d.limits.MaxCities))
	}

	k := &Kingdom{CityCount: n, Roads: make([]Road, 0, n-1)}
	d.cityCount = n

	for i := 1; i < n; i++ {
		a, line, err := d.nextCity(field{kind: fieldRoadFirst, road: i})
		if err != nil {
			return nil, err
		}
		b, _, err := d.nextCity(field{kind: fieldRoadSecond, road: i})
		if err != nil {
			return nil, err
		}
		status, _, err := d.nextInt(field{kind: fieldRoadStatus, road: i})
		if err != nil {
			return nil, err
		}
		k.Roads = append(k.Roads, Road{A: a, B: b, Open: status == 1, Line: line})
	}
	return k, nil
}

// DecodeQueries reads the query count and every count-prefixed query.
//
// Must be called after DecodeKingdom so city ids can be range checked.
func (d *Decoder) DecodeQueries() ([][]kingdom.CityID, error) {
	if d.cityCount == 0 {
		return nil, errors.New("queries decoded before kingdom section")
	}

	q, line, err := d.nextInt(field{kind: fieldQueryCount})
	if err != nil {
		return nil, err
	}
	if q < 0 {
		return nil, d.errorAt(line, field{kind: fieldQueryCount}, fmt.Errorf("%w: negative count %d", ErrMalformed, q))
	}
	if d.limits.MaxQueries > 0 && q > d.limits.MaxQueries {
		return nil, d.errorAt(line, field{kind: fieldQueryCount},
			fmt.Errorf("%w: %d queries, max %d", ErrLimitExceeded, q, d.limits.MaxQueries))
	}

	queries := make([][]kingdom.CityID, 0, q)
	for i := 1; i <= q; i++ {
		sizeField := field{kind: fieldQuerySize, query: i}
		size, line, err := d.nextInt(sizeField)
		if err != nil {
			return nil, err
		}
		if size < 1 {
			return nil, d.errorAt(line, sizeField, fmt.Errorf("%w: got %d", kingdom.ErrEmptyQuery, size))
		}
		if d.limits.MaxQuerySize > 0 && size > d.limits.MaxQuerySize {
			return nil, d.errorAt(line, sizeField,
				fmt.Errorf("%w: %d cities, max %d", ErrLimitExceeded, size, d.limits.MaxQuerySize))
		}

		query := make([]kingdom.CityID, size)
		for j := range query {
			c, _, err := d.nextCity(field{kind: fieldQueryCity, query: i, city: j + 1})
			if err != nil {
				return nil, err
			}
			query[j] = c
		}
		queries = append(queries, query)
	}
	return queries, nil
}

// nextCity reads a city id and checks it against the city count.
func (d *Decoder) nextCity(f field) (kingdom.CityID, int, error) {
	v, line, err := d.nextInt(f)
	if err != nil {
		return 0, line, err
	}
	if v < 1 || v > d.cityCount {
		return 0, line, d.errorAt(line, f,
			fmt.Errorf("%w: %d not in [1, %d]", kingdom.ErrCityOutOfRange, v, d.cityCount))
	}
	return kingdom.CityID(v), line, nil
}

// nextInt reads the next token as an integer and returns it with its line.
func (d *Decoder) nextInt(f field) (int, int, error) {
	tok, line, err := d.nextToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, line, d.errorAt(line, f, ErrTruncated)
		}
		return 0, line, d.errorAt(line, f, err)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, line, d.errorAt(line, f, fmt.Errorf("%w: %q is not an integer", ErrMalformed, tok))
	}
	return v, line, nil
}

// nextToken skips whitespace and returns the following run of non-space bytes.
func (d *Decoder) nextToken() (string, int, error) {
	var c byte
	var err error
	for {
		c, err = d.r.ReadByte()
		if err != nil {
			return "", d.line, err
		}
		if c == '\n' {
			d.line++
			continue
		}
		if !isSpace(c) {
			break
		}
	}

	line := d.line
	buf := make([]byte, 0, 8)
	for {
		if len(buf) == maxTokenLen {
			return "", line, fmt.Errorf("%w: token longer than %d bytes", ErrMalformed, maxTokenLen)
		}
		buf = append(buf, c)

		c, err = d.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return string(buf), line, nil
		}
		if err != nil {
			return "", line, err
		}
		if isSpace(c) {
			// Leave the separator for the next call so newlines are counted once.
			_ = d.r.UnreadByte()
			return string(buf), line, nil
		}
	}
}

func (d *Decoder) errorAt(line int, f field, err error) error {
	return &ParseError{Line: line, Field: f.String(), Err: err}
}

type fieldKind uint8

const (
	fieldCityCount fieldKind = iota
	fieldRoadFirst
	fieldRoadSecond
	fieldRoadStatus
	fieldQueryCount
	fieldQuerySize
	fieldQueryCity
)

// field names the value being decoded. The label is only formatted when an
// error is built, so decoding a valid input never allocates for it.
type field struct {
	kind  fieldKind
	road  int
	query int
	city  int
}

func (f field) String() string {
	switch f.kind {
	case fieldCityCount:
		return "city count"
	case fieldRoadFirst:
		return fmt.Sprintf("road %d first city", f.road)
	case fieldRoadSecond:
		return fmt.Sprintf("road %d second city", f.road)
	case fieldRoadStatus:
		return fmt.Sprintf("road %d status", f.road)
	case fieldQueryCount:
		return "query count"
	case fieldQuerySize:
		return fmt.Sprintf("query %d size", f.query)
	case fieldQueryCity:
		return fmt.Sprintf("query %d city %d", f.query, f.city)
	default:
		return "unknown field"
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
