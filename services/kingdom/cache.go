// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kingdom

import (
	"slices"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheStats contains answer cache statistics.
type CacheStats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// answerCache is an LRU of verdicts keyed by canonical query.
//
// Thread Safety: All methods are safe for concurrent use.
type answerCache struct {
	entries  *lru.Cache[string, Verdict]
	capacity int

	// Stats (atomic for lock-free reads)
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newAnswerCache(capacity int) (*answerCache, error) {
	c := &answerCache{capacity: capacity}
	entries, err := lru.NewWithEvict[string, Verdict](capacity, func(string, Verdict) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *answerCache) get(key string) (Verdict, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		c.misses.Add(1)
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (c *answerCache) add(key string, v Verdict) {
	c.entries.Add(key, v)
}

func (c *answerCache) stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Size:      c.entries.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}

// canonicalKey encodes the sorted, de-duplicated cities of a query.
//
// The answer only depends on the set of marked cities, so permutations and
// repeats of a query share one cache entry.
func canonicalKey(idx []int32) string {
	sorted := slices.Clone(idx)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	buf := make([]byte, 0, len(sorted)*7)
	for i, v := range sorted {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	return string(buf)
}
