// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bitmark-inc/distcache/cache"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
)

// Cache - an L1 or L2 cache node
type Cache struct {
	base
	tier           int
	parent         message.Address
	originalParent message.Address
	children       []message.Address
	entries        *cache.Entries
	pending        map[message.RequestID]message.Message
	sessions       map[message.RequestID]*session
	locks          map[int]message.RequestID
	state          int32
	crashPoint     message.CrashPoint
	recoverIn      time.Duration
}

// NewL1 - create a cache directly below the database
func NewL1(address message.Address, transport Transport, sink eventlog.Sink, params Parameters) *Cache {
	return newCache(address, RoleL1, 1, message.Database, transport, sink, params)
}

// NewL2 - create a cache below an L1
func NewL2(address message.Address, parent message.Address, transport Transport, sink eventlog.Sink, params Parameters) *Cache {
	return newCache(address, RoleL2, 2, parent, transport, sink, params)
}

func newCache(address message.Address, role Role, tier int, parent message.Address, transport Transport, sink eventlog.Sink, params Parameters) *Cache {
	return &Cache{
		base:           newBase(address, role, fmt.Sprintf("l%d-%d", tier, address), transport, sink, params),
		tier:           tier,
		parent:         parent,
		originalParent: parent,
		entries:        cache.New(),
		pending:        make(map[message.RequestID]message.Message),
		sessions:       make(map[message.RequestID]*session),
		locks:          make(map[int]message.RequestID),
	}
}

// State - current processing mode, safe from any goroutine
func (c *Cache) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Cache) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Entry - cached value of a key, safe from any goroutine
func (c *Cache) Entry(key int) (cache.Entry, bool) {
	return c.entries.Get(key)
}

// Parent - current parent address
//
// only safe to call when the node is not running
func (c *Cache) Parent() message.Address {
	return c.parent
}

// Locked - true while a critical write holds the key
//
// only safe to call when the node is not running
func (c *Cache) Locked(key int) bool {
	_, ok := c.locks[key]
	return ok
}

// Pending - number of requests awaiting an answer from the parent
//
// only safe to call when the node is not running
func (c *Cache) Pending() int {
	return len(c.pending)
}

// Receive - process one message
func (c *Cache) Receive(from message.Address, item message.Message) {
	c.stats.Received.Increment()
	c.observe(from, item)

	switch m := item.(type) {
	case message.JoinGroup:
		c.join(m)
		return
	case message.Token:
		c.onToken(from, m, c.entries.Contents)
		return
	}

	switch c.State() {
	case Crashed:
		if _, ok := item.(message.Recovery); ok {
			c.recover()
		} else {
			c.stats.Dropped.Increment()
		}
	case Unavailable:
		c.receiveUnavailable(from, item)
	default:
		c.receiveNormal(from, item)
	}
}

func (c *Cache) join(j message.JoinGroup) {
	c.children = append([]message.Address(nil), j.Peers...)
	if 1 == c.tier {
		c.setSnapshotPeers(append([]message.Address{c.parent}, c.children...))
	} else {
		c.setSnapshotPeers([]message.Address{c.originalParent})
	}
	c.log.Infof("join: parent: %d  children: %v", c.parent, c.children)
}

func (c *Cache) receiveNormal(from message.Address, item message.Message) {
	switch m := item.(type) {
	case message.Read:
		c.onRead(m)
	case message.Write:
		c.onWrite(m)
	case message.Response:
		c.onResponse(from, m)
	case message.Timeout:
		c.onTimeout(m)
	case message.Crash:
		c.arm(m)
	case message.Flush:
		c.clear("flush")
	case message.CriticalUpdate:
		c.onCriticalUpdate(m)
	case message.CriticalUpdateResponse:
		c.onVote(from, m)
	case message.CriticalUpdateTimeout:
		c.onVoteTimeout(m)
	case message.CriticalWriteResponse:
		c.onDecision(from, m)
	default:
		c.log.Debugf("ignore: %s from: %d", item.Name(), from)
	}
}

// answer along the hop chain, logging the answer if it goes to a client
func (c *Cache) reply(hops message.Hops, r message.Response, text string) {
	to, rest, ok := hops.Pop()
	if !ok {
		c.log.Warnf("reply: %s for: %s has no hops", r.Type, r.RequestID)
		return
	}
	r.Hops = rest
	if 0 == len(rest) {
		c.recordResponse(c.address, to, r, text)
	}
	c.send(to, r)
}

func (c *Cache) refuse(hops message.Hops, key int, t message.RequestType, id message.RequestID) {
	c.stats.Conflicts.Increment()
	c.log.Debugf("%s: key: %d locked", t, key)
	c.reply(hops, message.Response{
		Key:       key,
		RequestID: id,
		Type:      t,
	}, "locked")
}

func (c *Cache) onRead(r message.Read) {
	op := message.OperationFor(r.Type())
	if c.crashAt(message.Before, op) {
		return
	}
	c.read(r)
	c.crashAt(message.After, op)
}

func (c *Cache) read(r message.Read) {
	if _, ok := c.locks[r.Key]; ok {
		c.refuse(r.Hops, r.Key, r.Type(), r.RequestID)
		return
	}

	if !r.Critical {
		if e, ok := c.entries.Get(r.Key); ok {
			if e.Seqno >= r.Seqno {
				c.reply(r.Hops, message.Response{
					Key:       r.Key,
					Values:    message.SingleValue(r.Key, e.Value),
					RequestID: r.RequestID,
					Type:      r.Type(),
					Seqno:     e.Seqno,
				}, "hit")
				return
			}
			// caller has seen a newer version, stay silent
			c.stats.Stale.Increment()
			c.log.Debugf("read: key: %d held seqno: %d requested: %d", r.Key, e.Seqno, r.Seqno)
			return
		}
	}

	id := r.RequestID
	if message.NoRequest == id {
		id = message.NewRequestID()
	}
	up := message.Read{
		Key:       r.Key,
		Hops:      r.Hops.Push(c.address),
		RequestID: id,
		Critical:  r.Critical,
		Seqno:     r.Seqno,
	}
	seqno := eventlog.None
	if r.Seqno >= 0 {
		seqno = eventlog.Some(r.Seqno)
	}
	c.recordRequest(c.parent, up.Type(), up.Key, eventlog.None, seqno, id)
	c.pending[id] = up
	c.send(c.parent, up)
	if 2 == c.tier {
		c.schedule(id, c.params.CacheTimeout, message.Timeout{Original: up, Suspect: c.parent})
	}
}

func (c *Cache) onWrite(w message.Write) {
	op := message.OperationFor(w.Type())
	if c.crashAt(message.Before, op) {
		return
	}
	c.write(w)
	c.crashAt(message.After, op)
}

func (c *Cache) write(w message.Write) {
	if _, ok := c.locks[w.Key]; ok {
		c.refuse(w.Hops, w.Key, w.Type(), w.RequestID)
		return
	}

	id := w.RequestID
	if message.NoRequest == id {
		id = message.NewRequestID()
	}
	up := message.Write{
		Key:       w.Key,
		Value:     w.Value,
		Hops:      w.Hops.Push(c.address),
		RequestID: id,
		Critical:  w.Critical,
	}
	c.recordRequest(c.parent, up.Type(), up.Key, eventlog.Some(up.Value), eventlog.None, id)
	if 2 == c.tier {
		c.pending[id] = up
	}
	c.send(c.parent, up)
	if 2 == c.tier {
		c.schedule(id, c.params.CacheTimeout, message.Timeout{Original: up, Suspect: c.parent})
	}
}

func (c *Cache) onResponse(from message.Address, r message.Response) {
	if c.crashAt(message.Before, message.OnResponse) {
		return
	}

	switch {
	case r.IsError():
		c.dropPending(r.RequestID)
		c.recordResponse(from, c.address, r, "error")
		c.reply(r.Hops, r, "error")

	case message.TypeWrite == r.Type:
		if !c.onUpdate(from, r) {
			return
		}

	default:
		c.onReadResult(from, r)
	}

	c.crashAt(message.After, message.OnResponse)
}

// a committed write travelling down the tree
//
// false if the node crashed while passing it on
func (c *Cache) onUpdate(from message.Address, r message.Response) bool {
	value, _ := r.Value()
	result := c.entries.Update(r.Key, value, r.Seqno)
	if cache.Stale == result {
		c.stats.Stale.Increment()
	}
	c.recordResponse(from, c.address, r, result.String())

	if 1 == c.tier {
		_, rest, _ := r.Hops.Pop()
		down := r
		down.Hops = rest
		return c.multicastChildren(message.OnWriteValueMulticast, down)
	}

	if _, ok := c.pending[r.RequestID]; ok {
		c.dropPending(r.RequestID)
		c.reply(r.Hops, r, "write")
	}
	return true
}

// a read answer travelling down the hop chain
func (c *Cache) onReadResult(from message.Address, r message.Response) {
	c.dropPending(r.RequestID)

	value, _ := r.Value()
	held, stored := c.entries.Refresh(r.Key, value, r.Seqno)

	down := r
	text := "stored"
	if !stored {
		text = "held"
		if held.Seqno > r.Seqno {
			// never hand out an older version than this cache holds
			c.stats.Stale.Increment()
			down.Values = message.SingleValue(r.Key, held.Value)
			down.Seqno = held.Seqno
			text = "fresher copy"
		}
	}
	c.recordResponse(from, c.address, r, text)
	c.reply(r.Hops, down, text)
}

func (c *Cache) onTimeout(t message.Timeout) {
	id := requestID(t.Original)
	c.expire(id)
	if _, ok := c.pending[id]; !ok {
		return
	}
	c.stats.Timeouts.Increment()
	c.log.Warnf("timeout: %s on: %s suspect: %d", t.Original.Name(), id, t.Suspect)
	if 2 == c.tier {
		c.degenerate()
	}
}

func (c *Cache) dropPending(id message.RequestID) {
	delete(c.pending, id)
	c.cancel(id)
}

func requestID(item message.Message) message.RequestID {
	switch m := item.(type) {
	case message.Read:
		return m.RequestID
	case message.Write:
		return m.RequestID
	default:
		return message.NoRequest
	}
}
