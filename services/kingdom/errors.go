// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kingdom answers k-equality queries over a forest of cities.
//
// A kingdom is a set of trees: cities are nodes and open roads are unit-length
// edges. For a query of marked cities, travelers leave every marked city at the
// same moment and walk at the same speed. The package decides whether they can
// all meet at one city at the same time and, if so, how many cities are at the
// same distance from every marked city.
//
// # Lifecycle
//
//  1. Create with NewForest(cityCount)
//  2. Build with Link() calls, parent before child
//  3. Call Freeze() to build the ancestor tables
//  4. Query through a Resolver
//
// # Thread Safety
//
// Forest is NOT safe for concurrent use while linking. After Freeze() it is
// read-only and may be shared by any number of goroutines.
package kingdom

import "errors"

// Sentinel errors for forest and resolver operations.
var (
	// ErrInvalidCityCount is returned when a forest is created with fewer than one city.
	ErrInvalidCityCount = errors.New("city count must be at least 1")

	// ErrCityOutOfRange is returned when a city id is outside [1, cityCount].
	ErrCityOutOfRange = errors.New("city id out of range")

	// ErrSelfLoop is returned when a road connects a city to itself.
	ErrSelfLoop = errors.New("road connects a city to itself")

	// ErrCycle is returned when both ends of a road already belong to the same tree.
	ErrCycle = errors.New("road would close a cycle")

	// ErrUnorderedRoad is returned when both ends of a road are already placed
	// in different trees. Roads must be presented parent before child.
	ErrUnorderedRoad = errors.New("road joins two existing trees")

	// ErrForestFrozen is returned when linking after Freeze().
	ErrForestFrozen = errors.New("forest is frozen and cannot be modified")

	// ErrForestNotFrozen is returned when a resolver is built over a forest
	// that has not been frozen yet.
	ErrForestNotFrozen = errors.New("forest must be frozen before querying")

	// ErrEmptyQuery is returned when a query names no cities.
	ErrEmptyQuery = errors.New("query must name at least one city")
)
