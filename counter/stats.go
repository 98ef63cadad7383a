// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package counter

import (
	"fmt"
	"strings"
)

// Stats - per node event counts
//
// written by the node goroutine, readable from anywhere
type Stats struct {
	Received      Counter
	Dropped       Counter // discarded while crashed or unavailable
	Stale         Counter // outdated updates ignored, reads the cache is too old to answer
	Conflicts     Counter // requests refused on a locked key
	Timeouts      Counter
	Crashes       Counter
	Recoveries    Counter
	Degenerations Counter
	Commits       Counter
	Aborts        Counter
}

// Values - current counts by name
func (s *Stats) Values() map[string]uint64 {
	return map[string]uint64{
		"received":      s.Received.Uint64(),
		"dropped":       s.Dropped.Uint64(),
		"stale":         s.Stale.Uint64(),
		"conflicts":     s.Conflicts.Uint64(),
		"timeouts":      s.Timeouts.Uint64(),
		"crashes":       s.Crashes.Uint64(),
		"recoveries":    s.Recoveries.Uint64(),
		"degenerations": s.Degenerations.Uint64(),
		"commits":       s.Commits.Uint64(),
		"aborts":        s.Aborts.Uint64(),
	}
}

// String - non-zero counts only, in a fixed order
func (s *Stats) String() string {
	order := []struct {
		name string
		c    *Counter
	}{
		{"received", &s.Received},
		{"dropped", &s.Dropped},
		{"stale", &s.Stale},
		{"conflicts", &s.Conflicts},
		{"timeouts", &s.Timeouts},
		{"crashes", &s.Crashes},
		{"recoveries", &s.Recoveries},
		{"degenerations", &s.Degenerations},
		{"commits", &s.Commits},
		{"aborts", &s.Aborts},
	}
	parts := make([]string, 0, len(order))
	for _, item := range order {
		if !item.c.IsZero() {
			parts = append(parts, fmt.Sprintf("%s=%d", item.name, item.c.Uint64()))
		}
	}
	return strings.Join(parts, " ")
}
