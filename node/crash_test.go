// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/node"
)

func crashAt(tier int, stage message.Stage, op message.Operation) message.Crash {
	return message.Crash{
		Point:     message.CrashPoint{Tier: tier, Stage: stage, Operation: op},
		RecoverIn: 50 * time.Millisecond,
	}
}

func TestL2CrashAndRecovery(t *testing.T) {
	tr := newTree(t, 1, 1, 1, map[int]int{1: 10})
	l2 := tr.l2[0]

	tr.read(0, 1)
	tr.net.settle()

	tr.net.inject(l2.Address(), crashAt(2, message.Before, message.OnRead))
	tr.net.settle()
	assert.Equal(t, "L2_BEFORE_READ", l2.CrashPoint().String(), "crash point not armed")

	tr.read(0, 1)
	tr.net.settle()

	assert.Equal(t, node.Crashed, l2.State(), "L2 not crashed")
	assert.True(t, l2.CrashPoint().IsNone(), "crash point still armed")
	_, ok := l2.Entry(1)
	assert.False(t, ok, "entry survived crash")
	flushes := tr.events(flushesBy(l2.Address()))
	if assert.Equal(t, 1, len(flushes), "crash not logged") {
		assert.Equal(t, "crash", flushes[0].Text, "wrong text")
	}

	tr.net.inject(l2.Address(), message.Flush{})
	tr.net.settle()
	assert.Equal(t, uint64(1), l2.Stats().Dropped.Uint64(), "crashed cache processed a message")

	n := tr.net.fire(timerFor(l2.Address(), "Recovery"))
	assert.Equal(t, 1, n, "recovery not scheduled")
	tr.net.settle()
	assert.Equal(t, node.Normal, l2.State(), "L2 not recovered")
	assert.Equal(t, 1, len(tr.events(flushesBy(l2.Address()))), "recovery logged as a flush")

	n = tr.net.fire(timerFor(tr.clients[0].Address(), "Timeout"))
	assert.Equal(t, 1, n, "client timer not armed")
	tr.net.settle()

	o := tr.outcome(t, 0)
	assert.Equal(t, fault.ErrNoCacheAvailable, o.Err, "client kept the silent cache")
	assert.Equal(t, 1, o.Attempts, "wrong attempts")
	assert.Equal(t, 0, len(tr.clients[0].Caches()), "cache not dropped")
}

func TestInvalidCrashPointIgnored(t *testing.T) {
	tr := newTree(t, 1, 1, 0, map[int]int{})
	l2 := tr.l2[0]

	tr.net.inject(l2.Address(), crashAt(1, message.Before, message.OnRead))
	tr.net.inject(l2.Address(), crashAt(2, message.Doing, message.OnRead))
	tr.net.settle()

	assert.True(t, l2.CrashPoint().IsNone(), "invalid point armed")
	assert.Equal(t, node.Normal, l2.State(), "wrong state")
}

func TestL1RecoveryFlushesChildren(t *testing.T) {
	tr := newTree(t, 1, 2, 2, map[int]int{1: 10})
	l1 := tr.l1[0]
	tr.clients[0].Receive(message.External, message.JoinGroup{Peers: []message.Address{tr.l2[0].Address()}})
	tr.clients[1].Receive(message.External, message.JoinGroup{Peers: []message.Address{tr.l2[1].Address()}})

	tr.read(0, 1)
	tr.read(1, 1)
	tr.net.settle()

	tr.net.inject(l1.Address(), crashAt(1, message.Before, message.OnWrite))
	tr.write(0, 1, 11)
	tr.net.settle()

	assert.Equal(t, node.Crashed, l1.State(), "L1 not crashed")
	assert.Equal(t, 1, tr.l2[0].Pending(), "write not pending at L2")
	_, ok := tr.l2[1].Entry(1)
	assert.True(t, ok, "L2 cleared by parent crash")

	n := tr.net.fire(timerFor(l1.Address(), "Recovery"))
	assert.Equal(t, 1, n, "recovery not scheduled")
	tr.net.settle()

	assert.Equal(t, node.Normal, l1.State(), "L1 not recovered")
	assert.Equal(t, uint64(1), l1.Stats().Recoveries.Uint64(), "recovery not counted")
	for _, c := range tr.l2 {
		_, ok := c.Entry(1)
		assert.False(t, ok, "child not flushed")
		assert.Equal(t, node.Normal, c.State(), "child state changed")
		assert.Equal(t, 1, len(tr.events(flushesBy(c.Address()))), "child flush not logged")
	}
	assert.Equal(t, 0, tr.l2[0].Pending(), "pending survived flush")
	assert.Equal(t, 0, tr.net.armed(timerFor(tr.l2[0].Address(), "Timeout")), "timer survived flush")

	value, _, _ := tr.db.Get(1)
	assert.Equal(t, 10, value, "lost write committed")
}

func TestCrashDuringMulticast(t *testing.T) {
	tr := newTree(t, 1, 2, 2, map[int]int{1: 10})
	l1 := tr.l1[0]
	tr.clients[0].Receive(message.External, message.JoinGroup{Peers: []message.Address{tr.l2[0].Address()}})
	tr.clients[1].Receive(message.External, message.JoinGroup{Peers: []message.Address{tr.l2[1].Address()}})

	tr.read(0, 1)
	tr.read(1, 1)
	tr.net.settle()

	tr.net.inject(l1.Address(), crashAt(1, message.Doing, message.OnWriteValueMulticast))
	tr.write(0, 1, 12)
	tr.net.settle()

	assert.Equal(t, node.Crashed, l1.State(), "L1 not crashed")
	o := tr.outcome(t, 0)
	assert.Nil(t, o.Err, "first child did not answer")
	assert.Equal(t, 12, o.Value, "wrong value")

	e, _ := tr.l2[0].Entry(1)
	assert.Equal(t, cacheEntry(12, 1), e, "first child missed the write")
	e, _ = tr.l2[1].Entry(1)
	assert.Equal(t, cacheEntry(10, 0), e, "second child reached after crash")

	tr.net.fire(timerFor(l1.Address(), "Recovery"))
	tr.net.settle()

	_, ok := tr.l2[1].Entry(1)
	assert.False(t, ok, "stale child not flushed")
	tr.read(1, 1)
	tr.net.settle()
	assert.Equal(t, 12, tr.outcome(t, 1).Value, "stale value served after recovery")
}

func TestDegenerationAndRestore(t *testing.T) {
	tr := newTree(t, 1, 1, 1, map[int]int{1: 10})
	l1 := tr.l1[0]
	l2 := tr.l2[0]
	client := tr.clients[0].Address()

	tr.net.inject(l1.Address(), crashAt(1, message.Before, message.OnRead))
	tr.read(0, 1)
	tr.net.settle()
	assert.Equal(t, node.Crashed, l1.State(), "L1 not crashed")

	n := tr.net.fire(timerFor(l2.Address(), "Timeout"))
	assert.Equal(t, 1, n, "cache timer not armed")
	tr.net.settle()

	assert.Equal(t, node.Unavailable, l2.State(), "L2 not degenerate")
	assert.Equal(t, message.Database, l2.Parent(), "parent not replaced")
	assert.Equal(t, uint64(1), l2.Stats().Degenerations.Uint64(), "degeneration not counted")

	// requests are refused, answers already in flight still pass
	tr.net.Send(client, l2.Address(), message.Read{Key: 1, Hops: message.Hops{client}, RequestID: "dropped"})
	tr.net.Send(l1.Address(), l2.Address(), message.Response{
		Key:       1,
		Values:    message.SingleValue(1, 10),
		Hops:      message.Hops{client},
		RequestID: "in-flight",
		Type:      message.TypeRead,
	})
	tr.net.Send(message.Database, l2.Address(), message.Response{
		Key:       1,
		Values:    message.SingleValue(1, 13),
		RequestID: "propagated",
		Type:      message.TypeWrite,
		Seqno:     1,
	})
	tr.net.settle()

	assert.Equal(t, 0, len(tr.events(func(e eventlog.Event) bool { return "dropped" == e.RequestID })), "request served while degenerate")
	assert.Equal(t, 0, len(tr.events(func(e eventlog.Event) bool { return "propagated" == e.RequestID })), "update applied while degenerate")
	routed := tr.events(func(e eventlog.Event) bool {
		return "in-flight" == e.RequestID && client == e.Receiver
	})
	if assert.Equal(t, 1, len(routed), "in flight answer lost") {
		assert.Equal(t, "in flight", routed[0].Text, "wrong text")
	}
	_, ok := l2.Entry(1)
	assert.False(t, ok, "degenerate cache stored a value")

	n = tr.net.fire(timerFor(l1.Address(), "Recovery"))
	assert.Equal(t, 1, n, "recovery not scheduled")
	tr.net.settle()

	assert.Equal(t, node.Normal, l2.State(), "L2 not restored")
	assert.Equal(t, l1.Address(), l2.Parent(), "parent not restored")

	tr.net.fire(timerFor(client, "Timeout"))
	tr.net.settle()
	tr.clients[0].Receive(message.External, message.JoinGroup{Peers: []message.Address{l2.Address()}})
	tr.read(0, 1)
	tr.net.settle()
	o := tr.outcome(t, 0)
	assert.Nil(t, o.Err, "read after restore failed")
	assert.Equal(t, 10, o.Value, "wrong value after restore")
}
