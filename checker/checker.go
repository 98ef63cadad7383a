// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package checker replays an event log and verifies that every answer
// given to a client was consistent with the database
//
// rules:
//   - a value returned for a seqno must be the value the database
//     committed for that seqno
//   - a READ must return the last value known to the serving cache,
//     to its parent or to the database
//   - a CRITREAD must return the database's value, a version
//     superseded only after the request started is still current
//   - per client and key, the seqno of accepted answers never decreases
//   - an error answer must overlap a critical write on the same key,
//     a cache clear during a critical write leaves its window open
//   - database commits of a key have consecutive seqnos
//   - every snapshot value with a seqno is a committed version
package checker

import (
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/cache"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
)

// a committed or cached version of a key
type version struct {
	value int
	seqno int
}

// lifetime of a request id in the log
type request struct {
	t     message.RequestType
	key   int
	first int
	last  int
	open  bool // a cache clear happened while a critical write was open
}

type clientKey struct {
	client message.Address
	key    int
}

type replay struct {
	log        *eventlog.Log
	report     *Report
	l2Base     message.Address
	clientBase message.Address

	known    map[message.Address]map[int]version
	current  map[int]version
	history  map[int]map[int]int
	commitAt map[int]map[int]int // key, seqno to event index
	requests map[message.RequestID]*request
	latest   map[message.Address]message.RequestID
	seen     map[clientKey]int
	flushes  []int
	errors   []int
}

// CheckFile - parse and check a log file
func CheckFile(filename string) (*Report, error) {
	l, err := eventlog.ReadFile(filename)
	if nil != err {
		return nil, err
	}
	return Check(l), nil
}

// Check - verify a parsed log
func Check(l *eventlog.Log) *Report {
	r := &replay{
		log:        l,
		report:     &Report{},
		l2Base:     message.Address(1 + l.L1),
		clientBase: message.Address(1 + l.L1 + l.L1*l.L2),
		known:      make(map[message.Address]map[int]version),
		current:    make(map[int]version),
		history:    make(map[int]map[int]int),
		commitAt:   make(map[int]map[int]int),
		requests:   make(map[message.RequestID]*request),
		latest:     make(map[message.Address]message.RequestID),
		seen:       make(map[clientKey]int),
	}
	for k, v := range l.Database {
		r.current[k] = version{value: v, seqno: 0}
		r.history[k] = map[int]int{0: v}
	}

	r.spans()
	for i, e := range l.Events {
		r.replay(i, e)
	}
	r.checkErrors()
	r.checkSnapshots()

	r.report.Consistent = 0 == len(r.report.Problems)

	log := logger.New("checker")
	log.Infof("%s", r.report)
	return r.report
}

// first and last appearance of every request id, and where caches were cleared
func (r *replay) spans() {
	for i, e := range r.log.Events {
		if message.TypeFlush == e.Type {
			r.flushes = append(r.flushes, i)
			continue
		}
		if message.NoRequest == e.RequestID || message.TypeSnapshot == e.Type {
			continue
		}
		q, ok := r.requests[e.RequestID]
		if !ok {
			q = &request{
				t:     e.Type,
				key:   e.Key.Value,
				first: i,
			}
			r.requests[e.RequestID] = q
		}
		q.last = i
		if !e.IsResponse && r.isClient(e.Sender) {
			q.t = e.Type
		}
	}

	for _, q := range r.requests {
		if message.TypeCritWrite != q.t {
			continue
		}
		for _, f := range r.flushes {
			if f >= q.first && f <= q.last {
				q.open = true
				break
			}
		}
	}
}

func (r *replay) replay(i int, e eventlog.Event) {
	switch {
	case message.TypeSnapshot == e.Type:

	case message.TypeFlush == e.Type:
		delete(r.known, e.Sender)

	case e.IsCommit():
		r.commit(i, e)

	case !e.IsResponse:
		if r.isClient(e.Sender) {
			r.latest[e.Sender] = e.RequestID
		}

	case r.isClient(e.Receiver):
		r.answer(i, e)

	case cache.NotHeld.String() == e.Text:
		// update passing through a cache without the key

	case e.Value.Set && e.Seqno.Set && r.isCache(e.Receiver):
		r.learn(e.Receiver, e.Key.Value, version{value: e.Value.Value, seqno: e.Seqno.Value})
	}
}

// a database commit or abort line
func (r *replay) commit(i int, e eventlog.Event) {
	if !e.Value.Set {
		return
	}
	r.report.Commits += 1

	key := e.Key.Value
	seqno := e.Seqno.Value
	previous, ok := r.current[key]
	if ok && seqno != previous.seqno+1 {
		r.report.problem(i, e.RequestID, "commit of key: %d seqno: %d follows seqno: %d", key, seqno, previous.seqno)
	}
	if !ok && 1 != seqno {
		r.report.problem(i, e.RequestID, "first commit of new key: %d has seqno: %d", key, seqno)
	}

	r.current[key] = version{value: e.Value.Value, seqno: seqno}
	if _, ok := r.history[key]; !ok {
		r.history[key] = make(map[int]int)
	}
	r.history[key][seqno] = e.Value.Value
	if _, ok := r.commitAt[key]; !ok {
		r.commitAt[key] = make(map[int]int)
	}
	r.commitAt[key][seqno] = i
}

// remember the newest version a cache has seen
func (r *replay) learn(a message.Address, key int, v version) {
	m, ok := r.known[a]
	if !ok {
		m = make(map[int]version)
		r.known[a] = m
	}
	if held, ok := m[key]; ok && held.seqno > v.seqno {
		return
	}
	m[key] = v
}

// a final answer to a client
func (r *replay) answer(i int, e eventlog.Event) {
	r.report.Responses += 1

	if !e.Value.Set {
		r.report.Errors += 1
		r.errors = append(r.errors, i)
		return
	}
	if !e.Seqno.Set {
		r.report.problem(i, e.RequestID, "answer without seqno")
		return
	}

	key := e.Key.Value
	value := e.Value.Value
	seqno := e.Seqno.Value

	committed, ok := r.history[key][seqno]
	if !ok {
		r.report.problem(i, e.RequestID, "key: %d seqno: %d was never committed", key, seqno)
	} else if committed != value {
		r.report.problem(i, e.RequestID, "key: %d seqno: %d value: %d committed as: %d", key, seqno, value, committed)
	}

	if message.TypeRead == e.Type && !r.lastKnown(e.Sender, key, value) {
		r.report.problem(i, e.RequestID, "read of key: %d returned: %d unknown to: %d, its parent and the database", key, value, e.Sender)
	}
	if message.TypeCritRead == e.Type && !r.currentSince(e.RequestID, i, key, seqno) {
		r.report.problem(i, e.RequestID, "critical read of key: %d returned seqno: %d superseded before the request", key, seqno)
	}

	// answers to abandoned attempts are ignored by the client
	if r.latest[e.Receiver] != e.RequestID {
		return
	}
	ck := clientKey{client: e.Receiver, key: key}
	if last, ok := r.seen[ck]; ok && seqno < last {
		r.report.problem(i, e.RequestID, "client: %d key: %d seqno went back from: %d to: %d", e.Receiver, key, last, seqno)
		return
	}
	r.seen[ck] = seqno
}

// value is the last known at the serving cache, its parent or the database
func (r *replay) lastKnown(server message.Address, key int, value int) bool {
	if v, ok := r.known[server][key]; ok && v.value == value {
		return true
	}
	if parent, ok := r.parentOf(server); ok {
		if v, ok := r.known[parent][key]; ok && v.value == value {
			return true
		}
	}
	v, ok := r.current[key]
	return ok && v.value == value
}

// seqno was the database's version at some point after the request started
func (r *replay) currentSince(id message.RequestID, i int, key int, seqno int) bool {
	if v, ok := r.current[key]; ok && v.seqno == seqno {
		return true
	}
	start := i
	if q, ok := r.requests[id]; ok {
		start = q.first
	}
	next, ok := r.commitAt[key][seqno+1]
	return ok && next > start
}

// every error must overlap a critical write on the same key
func (r *replay) checkErrors() {
	for _, i := range r.errors {
		e := r.log.Events[i]
		key := e.Key.Value

		if _, ok := r.history[key]; !ok {
			r.report.ExpectedErrors += 1
			continue
		}

		start := i
		if q, ok := r.requests[e.RequestID]; ok {
			start = q.first
		}
		if r.insideCriticalWrite(key, start, i) {
			r.report.ExpectedErrors += 1
			continue
		}
		r.report.problem(i, e.RequestID, "error on key: %d outside any critical write", key)
	}
}

func (r *replay) insideCriticalWrite(key int, start int, end int) bool {
	for _, q := range r.requests {
		if message.TypeCritWrite != q.t || key != q.key {
			continue
		}
		if q.first > end {
			continue
		}
		if q.open || q.last >= start {
			return true
		}
	}
	return false
}

// captured values must be committed versions
func (r *replay) checkSnapshots() {
	for _, s := range r.log.Snapshots {
		r.report.Snapshots += 1
		for key, value := range s.Values {
			if seqno, ok := s.Seqnos[key]; ok {
				r.checkVersion(s, "captured", key, value, seqno)
			}
		}
		for key, value := range s.InTransit {
			if seqno, ok := s.SeqnosInTransit[key]; ok {
				r.checkVersion(s, "in transit", key, value, seqno)
			}
		}
	}
}

func (r *replay) checkVersion(s eventlog.SnapshotRecord, what string, key int, value int, seqno int) {
	committed, ok := r.history[key][seqno]
	if ok && committed == value {
		return
	}
	r.report.problem(-1, message.NoRequest, "snapshot: %d node: %d %s key: %d value: %d seqno: %d is not a committed version",
		s.SnapshotID, s.Node, what, key, value, seqno)
}

func (r *replay) isClient(a message.Address) bool {
	return a >= r.clientBase
}

func (r *replay) isCache(a message.Address) bool {
	return a > message.Database && a < r.clientBase
}

// original L1 of an L2
func (r *replay) parentOf(a message.Address) (message.Address, bool) {
	if a < r.l2Base || a >= r.clientBase || 0 == r.log.L2 {
		return 0, false
	}
	return message.Address(1 + int(a-r.l2Base)/r.log.L2), true
}
