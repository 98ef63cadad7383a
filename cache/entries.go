// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"strconv"

	gocache "github.com/patrickmn/go-cache"
)

// Entry - a cached value with the seqno it was committed at
type Entry struct {
	Value int
	Seqno int
}

// Result - outcome of an update
type Result int

// possible results
const (
	Applied Result = iota
	NotHeld
	Stale
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "Applied"
	case NotHeld:
		return "NotHeld"
	case Stale:
		return "Stale"
	default:
		return "*Unknown*"
	}
}

// Entries - key to entry map of one cache node
type Entries struct {
	items *gocache.Cache
}

// New - create an empty map
func New() *Entries {
	return &Entries{
		items: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get - fetch a held entry
func (e *Entries) Get(key int) (Entry, bool) {
	item, ok := e.items.Get(strconv.Itoa(key))
	if !ok {
		return Entry{}, false
	}
	return item.(Entry), true
}

// Has - check if a key is held
func (e *Entries) Has(key int) bool {
	_, ok := e.items.Get(strconv.Itoa(key))
	return ok
}

// Refresh - store a read result unless an equal or newer seqno is held
//
// returns the entry now held and whether it was stored
func (e *Entries) Refresh(key int, value int, seqno int) (Entry, bool) {
	if held, ok := e.Get(key); ok && held.Seqno >= seqno {
		return held, false
	}
	entry := Entry{Value: value, Seqno: seqno}
	e.items.Set(strconv.Itoa(key), entry, gocache.NoExpiration)
	return entry, true
}

// Update - apply a propagated write to a held key
func (e *Entries) Update(key int, value int, seqno int) Result {
	held, ok := e.Get(key)
	if !ok {
		return NotHeld
	}
	if seqno <= held.Seqno {
		return Stale
	}
	e.items.Set(strconv.Itoa(key), Entry{Value: value, Seqno: seqno}, gocache.NoExpiration)
	return Applied
}

// Flush - discard every entry
func (e *Entries) Flush() {
	e.items.Flush()
}

// Len - number of held keys
func (e *Entries) Len() int {
	return e.items.ItemCount()
}

// Contents - copies of the held values and seqnos
func (e *Entries) Contents() (map[int]int, map[int]int) {
	items := e.items.Items()
	values := make(map[int]int, len(items))
	seqnos := make(map[int]int, len(items))
	for k, item := range items {
		key, err := strconv.Atoi(k)
		if nil != err {
			continue
		}
		entry := item.Object.(Entry)
		values[key] = entry.Value
		seqnos[key] = entry.Seqno
	}
	return values, seqnos
}
