// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/cache"
)

func TestRefresh(t *testing.T) {
	e := cache.New()

	entry, stored := e.Refresh(21, 5, 2)
	assert.True(t, stored, "first refresh not stored")
	assert.Equal(t, cache.Entry{Value: 5, Seqno: 2}, entry, "wrong entry")

	entry, stored = e.Refresh(21, 4, 1)
	assert.False(t, stored, "older refresh stored")
	assert.Equal(t, cache.Entry{Value: 5, Seqno: 2}, entry, "held entry not returned")

	entry, stored = e.Refresh(21, 9, 2)
	assert.False(t, stored, "equal seqno refresh stored")
	assert.Equal(t, 5, entry.Value, "equal seqno changed value")

	entry, stored = e.Refresh(21, 6, 3)
	assert.True(t, stored, "newer refresh not stored")
	assert.Equal(t, cache.Entry{Value: 6, Seqno: 3}, entry, "wrong newer entry")
}

func TestUpdate(t *testing.T) {
	e := cache.New()

	assert.Equal(t, cache.NotHeld, e.Update(7, 1, 1), "update populated the cache")
	assert.False(t, e.Has(7), "key present after update of absent key")

	e.Refresh(7, 1, 1)
	assert.Equal(t, cache.Stale, e.Update(7, 2, 1), "equal seqno applied")
	assert.Equal(t, cache.Stale, e.Update(7, 2, 0), "older seqno applied")
	assert.Equal(t, cache.Applied, e.Update(7, 3, 2), "newer seqno not applied")

	entry, ok := e.Get(7)
	assert.True(t, ok, "key not held")
	assert.Equal(t, cache.Entry{Value: 3, Seqno: 2}, entry, "wrong entry")
	assert.Equal(t, "Stale", cache.Stale.String(), "wrong result name")
}

func TestFlushIsIdempotent(t *testing.T) {
	e := cache.New()

	e.Flush()
	assert.Equal(t, 0, e.Len(), "empty flush added items")

	e.Refresh(1, 10, 0)
	e.Refresh(2, 20, 3)
	values, seqnos := e.Contents()
	assert.Equal(t, map[int]int{1: 10, 2: 20}, values, "wrong values")
	assert.Equal(t, map[int]int{1: 0, 2: 3}, seqnos, "wrong seqnos")

	e.Flush()
	e.Flush()
	assert.Equal(t, 0, e.Len(), "flush left items")
	values, _ = e.Contents()
	assert.Equal(t, 0, len(values), "contents after flush")
}
