// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checker_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/cache"
	"github.com/bitmark-inc/distcache/checker"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

func writeThenRead() *builder {
	return newLog(map[int]int{21: 0}).
		upwards(client0, message.TypeWrite, 21, "w").
		commit(message.TypeWrite, 21, 5, 1, "w").
		downwards(client0, message.TypeWrite, 21, 5, 1, "w").
		upwards(client1, message.TypeRead, 21, "r").
		downwards(client1, message.TypeRead, 21, 5, 1, "r")
}

func TestConsistentRun(t *testing.T) {
	r := checker.Check(writeThenRead().l)

	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Nil(t, r.Err(), "unexpected error")
	assert.Equal(t, 2, r.Responses, "wrong responses")
	assert.Equal(t, 1, r.Commits, "wrong commits")
	assert.Equal(t, 0, r.Errors, "wrong errors")
}

func TestWrongReadValue(t *testing.T) {
	b := writeThenRead().
		request(client1, l2, message.TypeRead, 21, "bad").
		response(l2, client1, message.TypeRead, 21, 4, 1, "bad")

	r := checker.Check(b.l)

	assert.False(t, r.Consistent, "wrong value accepted")
	assert.Equal(t, fault.ErrCheckerInconsistent, r.Err(), "wrong error")
	if assert.Equal(t, 2, len(r.Problems), "wrong number of problems") {
		assert.Equal(t, message.RequestID("bad"), r.Problems[0].RequestID, "wrong request")
		assert.Equal(t, len(b.l.Events)-1, r.Problems[0].Event, "wrong event")
	}
}

func TestReadBeforePropagationIsConsistent(t *testing.T) {
	b := newLog(map[int]int{21: 0}).
		upwards(client1, message.TypeRead, 21, "r1").
		downwards(client1, message.TypeRead, 21, 0, 0, "r1").
		upwards(client0, message.TypeWrite, 21, "w").
		commit(message.TypeWrite, 21, 5, 1, "w").
		response(db, l1, message.TypeWrite, 21, 5, 1, "w").
		// hit on L2 before the update arrives
		request(client1, l2, message.TypeRead, 21, "r2").
		response(l2, client1, message.TypeRead, 21, 0, 0, "r2").
		response(l1, l2, message.TypeWrite, 21, 5, 1, "w").
		response(l2, client0, message.TypeWrite, 21, 5, 1, "w")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
}

func TestErrorInsideCriticalWrite(t *testing.T) {
	b := newLog(map[int]int{21: 5}).
		upwards(client0, message.TypeCritWrite, 21, "cw").
		request(client1, l2, message.TypeRead, 21, "r").
		failure(l2, client1, message.TypeRead, 21, "r").
		commit(message.TypeCritWrite, 21, 6, 1, "cw").
		downwards(client0, message.TypeCritWrite, 21, 6, 1, "cw").
		upwards(client1, message.TypeRead, 21, "r2").
		downwards(client1, message.TypeRead, 21, 6, 1, "r2")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 1, r.Errors, "wrong errors")
	assert.Equal(t, 1, r.ExpectedErrors, "wrong expected errors")
}

func TestAbortIsExpectedError(t *testing.T) {
	b := newLog(map[int]int{21: 5}).
		upwards(client0, message.TypeCritWrite, 21, "cw").
		failure(db, db, message.TypeCritWrite, 21, "cw").
		failure(db, l1, message.TypeCritWrite, 21, "cw").
		failure(l1, l2, message.TypeCritWrite, 21, "cw").
		failure(l2, client0, message.TypeCritWrite, 21, "cw")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 0, r.Commits, "abort counted as commit")
	assert.Equal(t, 1, r.ExpectedErrors, "wrong expected errors")
}

func TestErrorOutsideCriticalWrite(t *testing.T) {
	b := writeThenRead().
		request(client1, l2, message.TypeRead, 21, "e").
		failure(l2, client1, message.TypeRead, 21, "e")

	r := checker.Check(b.l)
	assert.False(t, r.Consistent, "unexplained error accepted")
	assert.Equal(t, 1, len(r.Problems), "wrong number of problems")
	assert.Equal(t, 0, r.ExpectedErrors, "wrong expected errors")
}

func TestErrorOnUnknownKeyIsExpected(t *testing.T) {
	b := writeThenRead().
		upwards(client1, message.TypeRead, 99, "e").
		failure(db, l1, message.TypeRead, 99, "e").
		failure(l1, l2, message.TypeRead, 99, "e").
		failure(l2, client1, message.TypeRead, 99, "e")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 1, r.ExpectedErrors, "wrong expected errors")
}

func TestClearDuringCriticalWriteLeavesWindowOpen(t *testing.T) {
	b := newLog(map[int]int{21: 5}).
		upwards(client0, message.TypeCritWrite, 21, "cw").
		flush(l1).
		failure(db, db, message.TypeCritWrite, 21, "cw").
		upwards(client1, message.TypeRead, 21, "r").
		request(l2, l1, message.TypeRead, 21, "r").
		failure(l2, client1, message.TypeRead, 21, "r")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 1, r.ExpectedErrors, "wrong expected errors")
}

func TestSeqnoGoesBack(t *testing.T) {
	b := writeThenRead().
		flush(l2).
		request(client1, l2, message.TypeRead, 21, "old").
		response(l1, l2, message.TypeRead, 21, 0, 0, "old").
		response(l2, client1, message.TypeRead, 21, 0, 0, "old")

	r := checker.Check(b.l)
	assert.False(t, r.Consistent, "seqno regression accepted")
	if assert.Equal(t, 1, len(r.Problems), "wrong number of problems") {
		assert.Equal(t, message.RequestID("old"), r.Problems[0].RequestID, "wrong request")
	}
}

func TestAbandonedAttemptIgnoredForSeqno(t *testing.T) {
	b := writeThenRead().
		flush(l2).
		request(client1, l2, message.TypeRead, 21, "old").
		request(client1, l2, message.TypeRead, 21, "retry").
		response(l1, l2, message.TypeRead, 21, 0, 0, "old").
		response(l2, client1, message.TypeRead, 21, 0, 0, "old")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
}

func TestStaleCriticalRead(t *testing.T) {
	b := writeThenRead().
		upwards(client1, message.TypeCritRead, 21, "stale").
		downwards(client1, message.TypeCritRead, 21, 0, 0, "stale")

	r := checker.Check(b.l)
	assert.False(t, r.Consistent, "superseded critical read accepted")
	if assert.Equal(t, 1, len(r.Problems), "wrong number of problems") {
		assert.Equal(t, message.RequestID("stale"), r.Problems[0].RequestID, "wrong request")
	}
}

func TestCriticalReadOverlappingWrite(t *testing.T) {
	b := newLog(map[int]int{21: 0}).
		upwards(client1, message.TypeCritRead, 21, "cr").
		response(db, l1, message.TypeCritRead, 21, 0, 0, "cr").
		// commit lands while the answer travels down
		upwards(client0, message.TypeWrite, 21, "w").
		commit(message.TypeWrite, 21, 5, 1, "w").
		response(l1, l2, message.TypeCritRead, 21, 0, 0, "cr").
		response(l2, client1, message.TypeCritRead, 21, 0, 0, "cr").
		downwards(client0, message.TypeWrite, 21, 5, 1, "w")

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
}

func TestUpdateNotHeldTeachesNothing(t *testing.T) {
	b := newLog(map[int]int{21: 0}).
		upwards(client0, message.TypeWrite, 21, "w1").
		commit(message.TypeWrite, 21, 5, 1, "w1").
		response(db, l1, message.TypeWrite, 21, 5, 1, "w1")
	b.add(eventlog.Event{
		Sender:     l1,
		Receiver:   l2,
		Type:       message.TypeWrite,
		IsResponse: true,
		Key:        eventlog.Some(21),
		Value:      eventlog.Some(5),
		Seqno:      eventlog.Some(1),
		RequestID:  "w1",
		Text:       cache.NotHeld.String(),
	})
	b.response(l2, client0, message.TypeWrite, 21, 5, 1, "w1").
		upwards(client0, message.TypeWrite, 21, "w2").
		commit(message.TypeWrite, 21, 6, 2, "w2").
		response(db, l1, message.TypeWrite, 21, 6, 2, "w2").
		request(client1, l2, message.TypeRead, 21, "r").
		response(l2, client1, message.TypeRead, 21, 5, 1, "r")

	r := checker.Check(b.l)
	assert.False(t, r.Consistent, "value from a cache without the key accepted")
	if assert.Equal(t, 1, len(r.Problems), "wrong number of problems") {
		assert.Equal(t, message.RequestID("r"), r.Problems[0].RequestID, "wrong request")
	}
}

func TestCommitGap(t *testing.T) {
	b := newLog(map[int]int{1: 1}).
		commit(message.TypeWrite, 1, 2, 1, "a").
		commit(message.TypeWrite, 1, 3, 3, "b")

	r := checker.Check(b.l)
	assert.False(t, r.Consistent, "seqno gap accepted")
	assert.Equal(t, 2, r.Commits, "wrong commits")
	if assert.Equal(t, 1, len(r.Problems), "wrong number of problems") {
		assert.Equal(t, 1, r.Problems[0].Event, "wrong event")
	}
}

func TestSnapshotVersions(t *testing.T) {
	b := writeThenRead()
	b.l.Snapshots = []eventlog.SnapshotRecord{
		{
			Node:            db,
			SnapshotID:      1,
			Values:          map[int]int{21: 0},
			Seqnos:          map[int]int{21: 0},
			InTransit:       map[int]int{21: 5},
			SeqnosInTransit: map[int]int{},
		},
		{
			Node:       l2,
			SnapshotID: 1,
			Values:     map[int]int{21: 5},
			Seqnos:     map[int]int{21: 1},
		},
	}

	r := checker.Check(b.l)
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 2, r.Snapshots, "wrong snapshots")

	b.l.Snapshots[1].Values[21] = 7
	r = checker.Check(b.l)
	assert.False(t, r.Consistent, "invented value accepted")
	assert.Equal(t, 1, len(r.Problems), "wrong number of problems")
}

func TestCheckFile(t *testing.T) {
	filename := filepath.Join(testingDirName, "run.log")
	w, err := eventlog.Create(filename)
	assert.Nil(t, err, "create error")

	l := writeThenRead().l
	w.Configuration(l.L1, l.L2, l.Clients)
	w.Database(l.Database)
	for _, e := range l.Events {
		w.Record(e)
	}
	w.Snapshot(eventlog.SnapshotRecord{
		Node:       l1,
		SnapshotID: 1,
		Values:     map[int]int{21: 5},
		Seqnos:     map[int]int{21: 1},
	})
	assert.Nil(t, w.Close(), "close error")

	r, err := checker.CheckFile(filename)
	assert.Nil(t, err, "check error")
	assert.True(t, r.Consistent, "problems: %v", r.Problems)
	assert.Equal(t, 2, r.Responses, "wrong responses")
	assert.Equal(t, 1, r.Snapshots, "wrong snapshots")

	_, err = checker.CheckFile(filepath.Join(testingDirName, "missing.log"))
	assert.NotNil(t, err, "missing file accepted")
}
