// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/bitmark-inc/distcache/cache"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
)

// prepare phase of a critical write
//
// an L2 locks and agrees at once, an L1 locks and collects the votes
// of its children first
func (c *Cache) onCriticalUpdate(u message.CriticalUpdate) {
	if other, ok := c.locks[u.Key]; ok && other != u.RequestID && 1 == c.tier {
		c.log.Warnf("critical update: %s key: %d held by: %s", u.RequestID, u.Key, other)
		c.vote(u.RequestID, u.Hops, message.VoteNo)
		return
	}

	s := &session{
		key:   u.Key,
		value: u.Value,
		hops:  u.Hops.Copy(),
		votes: make(map[message.Address]bool),
	}
	c.locks[u.Key] = u.RequestID
	c.sessions[u.RequestID] = s
	c.log.Debugf("critical update: %s key: %d value: %d locked", u.RequestID, u.Key, u.Value)

	if 2 == c.tier || 0 == len(c.children) {
		s.voted = true
		c.vote(u.RequestID, u.Hops, message.VoteOK)
		return
	}

	if !c.multicastChildren(message.OnCriticalUpdateMulticast, u) {
		return
	}
	c.schedule(u.RequestID, c.params.ParticipantTimeout, message.CriticalUpdateTimeout{
		RequestID: u.RequestID,
		Hops:      u.Hops,
	})
}

func (c *Cache) vote(id message.RequestID, hops message.Hops, v message.Vote) {
	c.log.Debugf("vote: %s on: %s", v, id)
	c.send(c.parent, message.CriticalUpdateResponse{
		Vote:      v,
		RequestID: id,
		Hops:      hops,
	})
}

// a child's vote, L1 only
func (c *Cache) onVote(from message.Address, v message.CriticalUpdateResponse) {
	s, ok := c.sessions[v.RequestID]
	if !ok || s.voted {
		c.log.Debugf("vote: %s from: %d on: %s ignored", v.Vote, from, v.RequestID)
		return
	}

	if message.VoteNo == v.Vote {
		s.voted = true
		c.cancel(v.RequestID)
		c.vote(v.RequestID, s.hops, message.VoteNo)
		return
	}

	s.votes[from] = true
	for _, child := range c.children {
		if !s.votes[child] {
			return
		}
	}
	s.voted = true
	c.cancel(v.RequestID)
	c.vote(v.RequestID, s.hops, message.VoteOK)
}

// children did not all vote in time, L1 only
func (c *Cache) onVoteTimeout(t message.CriticalUpdateTimeout) {
	c.expire(t.RequestID)
	s, ok := c.sessions[t.RequestID]
	if !ok || s.voted {
		return
	}
	c.stats.Timeouts.Increment()
	c.log.Warnf("critical update: %s votes overdue", t.RequestID)
	s.voted = true
	c.vote(t.RequestID, s.hops, message.VoteNo)
}

// commit or abort decided by the database
func (c *Cache) onDecision(from message.Address, d message.CriticalWriteResponse) {
	if 2 == c.tier && c.crashAt(message.Before, message.OnResponse) {
		return
	}

	if s, ok := c.sessions[d.RequestID]; ok {
		delete(c.sessions, d.RequestID)
		if c.locks[s.key] == d.RequestID {
			delete(c.locks, s.key)
		}
		c.cancel(d.RequestID)
	}

	e := eventlog.Event{
		Sender:     from,
		Receiver:   c.address,
		Type:       message.TypeCritWrite,
		IsResponse: true,
		Key:        eventlog.Some(d.Key),
		RequestID:  d.RequestID,
		Text:       d.Decision.String(),
	}
	if message.Commit == d.Decision {
		c.stats.Commits.Increment()
		if cache.Stale == c.entries.Update(d.Key, d.Value, d.Seqno) {
			c.stats.Stale.Increment()
		}
		e.Value = eventlog.Some(d.Value)
		e.Seqno = eventlog.Some(d.Seqno)
	} else {
		c.stats.Aborts.Increment()
		e.Level = eventlog.Warning
	}
	c.record(e)

	if 1 == c.tier {
		_, rest, _ := d.Hops.Pop()
		down := d
		down.Hops = rest
		op := message.OnAbortMulticast
		if message.Commit == d.Decision {
			op = message.OnCommitMulticast
		}
		c.multicastChildren(op, down)
		return
	}

	if _, ok := c.pending[d.RequestID]; ok {
		c.dropPending(d.RequestID)
		r := message.Response{
			Key:       d.Key,
			RequestID: d.RequestID,
			Type:      message.TypeCritWrite,
		}
		if message.Commit == d.Decision {
			r.Values = message.SingleValue(d.Key, d.Value)
			r.Seqno = d.Seqno
		}
		c.reply(d.Hops, r, d.Decision.String())
	}
	c.crashAt(message.After, message.OnResponse)
}
