// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventlog

import (
	"sync"
	"time"
)

// Memory - sink keeping every event in memory
type Memory struct {
	sync.Mutex
	log Log
}

// NewMemory - create an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{}
}

// Configuration - record the tree shape
func (m *Memory) Configuration(l1 int, l2 int, clients int) {
	m.Lock()
	defer m.Unlock()
	m.log.L1 = l1
	m.log.L2 = l2
	m.log.Clients = clients
}

// Database - record the initial contents
func (m *Memory) Database(values map[int]int) {
	m.Lock()
	defer m.Unlock()
	m.log.Database = make(map[int]int, len(values))
	for k, v := range values {
		m.log.Database[k] = v
	}
}

// Record - append an event
func (m *Memory) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	m.Lock()
	defer m.Unlock()
	m.log.Events = append(m.log.Events, e)
}

// Snapshot - append a snapshot record
func (m *Memory) Snapshot(r SnapshotRecord) {
	m.Lock()
	defer m.Unlock()
	m.log.Snapshots = append(m.log.Snapshots, r)
}

// Log - copy of everything recorded so far
func (m *Memory) Log() *Log {
	m.Lock()
	defer m.Unlock()

	l := m.log
	l.Events = make([]Event, len(m.log.Events))
	copy(l.Events, m.log.Events)
	l.Snapshots = make([]SnapshotRecord, len(m.log.Snapshots))
	copy(l.Snapshots, m.log.Snapshots)
	return &l
}

// Events - copy of the events that satisfy a filter
func (m *Memory) Events(filter func(Event) bool) []Event {
	m.Lock()
	defer m.Unlock()

	result := make([]Event, 0, len(m.log.Events))
	for _, e := range m.log.Events {
		if nil == filter || filter(e) {
			result = append(result, e)
		}
	}
	return result
}

// Tee - forward to several sinks
type Tee []Sink

// Configuration - forward the tree shape
func (t Tee) Configuration(l1 int, l2 int, clients int) {
	for _, s := range t {
		s.Configuration(l1, l2, clients)
	}
}

// Database - forward the initial contents
func (t Tee) Database(values map[int]int) {
	for _, s := range t {
		s.Database(values)
	}
}

// Record - forward an event
func (t Tee) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, s := range t {
		s.Record(e)
	}
}

// Snapshot - forward a snapshot record
func (t Tee) Snapshot(r SnapshotRecord) {
	for _, s := range t {
		s.Snapshot(r)
	}
}
