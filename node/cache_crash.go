// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/bitmark-inc/distcache/message"
)

// CrashPoint - the armed crash point
//
// only safe to call when the node is not running
func (c *Cache) CrashPoint() message.CrashPoint {
	return c.crashPoint
}

// arm a one-shot crash point
func (c *Cache) arm(m message.Crash) {
	if !m.Point.Valid() || m.Point.Tier != c.tier {
		c.log.Warnf("crash: point: %s invalid for tier: %d", m.Point, c.tier)
		return
	}
	c.crashPoint = m.Point
	c.recoverIn = m.RecoverIn
	c.log.Infof("crash: armed: %s recover in: %s", m.Point, m.RecoverIn)
}

// crash if processing has reached the armed point
func (c *Cache) crashAt(stage message.Stage, op message.Operation) bool {
	if c.crashPoint.IsNone() || Crashed == c.State() {
		return false
	}
	if (message.CrashPoint{Tier: c.tier, Stage: stage, Operation: op}) != c.crashPoint {
		return false
	}
	c.crash()
	return true
}

// multicast to the children with the crash points of the operation
//
// false if the node crashed
func (c *Cache) multicastChildren(op message.Operation, item message.Message) bool {
	if c.crashAt(message.Before, op) {
		return false
	}
	doing := message.CrashPoint{Tier: c.tier, Stage: message.Doing, Operation: op}
	ok := c.multicast(c.children, item, func(n int) bool {
		if 1 == n && doing == c.crashPoint {
			c.crash()
			return false
		}
		return true
	})
	if !ok {
		return false
	}
	return !c.crashAt(message.After, op)
}

func (c *Cache) crash() {
	c.log.Warnf("crash: at: %s recover in: %s", c.crashPoint, c.recoverIn)
	c.stats.Crashes.Increment()
	c.crashPoint = message.NoCrash
	c.clear("crash")
	c.setState(Crashed)
	c.transport.SendAfter(c.recoverIn, c.address, c.address, message.Recovery{})
}

func (c *Cache) recover() {
	c.stats.Recoveries.Increment()
	c.reset()

	if c.parent != c.originalParent {
		c.setState(Unavailable)
	} else {
		c.setState(Normal)
	}
	c.log.Infof("recovered: state: %s", c.State())

	if 1 == c.tier {
		// children may hold entries made stale by writes missed while crashed
		c.multicastChildren(message.OnFlushMulticast, message.Flush{})
	}
}

// discard cache contents and every open request, logged as a flush
func (c *Cache) clear(reason string) {
	c.log.Infof("clear: %s  entries: %d  pending: %d  sessions: %d", reason, c.entries.Len(), len(c.pending), len(c.sessions))
	c.reset()
	c.recordFlush(reason)
}

func (c *Cache) reset() {
	c.entries.Flush()
	c.cancelAll()
	c.pending = make(map[message.RequestID]message.Message)
	c.sessions = make(map[message.RequestID]*session)
	c.locks = make(map[int]message.RequestID)
}

// parent stopped answering, stop serving until the parent flushes
func (c *Cache) degenerate() {
	c.log.Warnf("degenerate: parent: %d is silent", c.parent)
	c.stats.Degenerations.Increment()
	c.clear("degenerate")
	c.parent = message.Database
	c.setState(Unavailable)
}

// only in-flight answers are passed on while unavailable
func (c *Cache) receiveUnavailable(from message.Address, item message.Message) {
	switch m := item.(type) {
	case message.Response:
		if message.TypeWrite == m.Type && !m.IsError() {
			c.stats.Dropped.Increment()
			return
		}
		if c.crashAt(message.Before, message.OnResponse) {
			return
		}
		c.recordResponse(from, c.address, m, "in flight")
		c.reply(m.Hops, m, "in flight")
		c.crashAt(message.After, message.OnResponse)

	case message.Crash:
		c.arm(m)

	case message.Flush:
		c.log.Infof("restore: parent: %d", c.originalParent)
		c.parent = c.originalParent
		c.clear("flush")
		c.setState(Normal)

	default:
		c.stats.Dropped.Increment()
	}
}
