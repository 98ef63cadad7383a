// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/storage"
)

// an open critical write
type session struct {
	key   int
	value int
	hops  message.Hops
	votes map[message.Address]bool
	voted bool // L1 only: vote already sent upwards
}

// Database - authoritative store and critical write coordinator
type Database struct {
	base
	store    *storage.Store
	children []message.Address
	sessions map[message.RequestID]*session
	locks    map[int]message.RequestID
}

// NewDatabase - create the root node over an initialised store
func NewDatabase(store *storage.Store, transport Transport, sink eventlog.Sink, params Parameters) *Database {
	return &Database{
		base:     newBase(message.Database, RoleDatabase, "database", transport, sink, params),
		store:    store,
		sessions: make(map[message.RequestID]*session),
		locks:    make(map[int]message.RequestID),
	}
}

// Get - committed value and seqno
func (d *Database) Get(key int) (int, int, bool) {
	value, seqno, found, err := d.store.Get(key)
	fault.PanicIfError("database get", err)
	return value, seqno, found
}

// Locked - true while a critical write holds the key
//
// only safe to call when the node is not running
func (d *Database) Locked(key int) bool {
	_, ok := d.locks[key]
	return ok
}

// Receive - process one message
func (d *Database) Receive(from message.Address, item message.Message) {
	d.stats.Received.Increment()
	d.observe(from, item)

	switch m := item.(type) {
	case message.JoinGroup:
		d.children = append([]message.Address(nil), m.Peers...)
		d.setSnapshotPeers(d.children)
		d.log.Infof("join: children: %v", d.children)

	case message.Read:
		d.onRead(m)

	case message.Write:
		if m.Critical {
			d.onCriticalWrite(m)
		} else {
			d.onWrite(m)
		}

	case message.CriticalUpdateResponse:
		d.onVote(from, m)

	case message.CriticalUpdateTimeout:
		d.expire(m.RequestID)
		if _, ok := d.sessions[m.RequestID]; ok {
			d.stats.Timeouts.Increment()
			d.log.Warnf("critical write: %s votes overdue", m.RequestID)
			d.abort(m.RequestID)
		}

	case message.StartSnapshot:
		d.startSnapshot(d.state)

	case message.Token:
		d.onToken(from, m, d.state)

	default:
		d.log.Debugf("ignore: %s from: %d", item.Name(), from)
	}
}

func (d *Database) state() (map[int]int, map[int]int) {
	frozen, err := d.store.Freeze()
	fault.PanicIfError("database freeze", err)
	defer frozen.Release()

	values, seqnos, err := frozen.Contents()
	fault.PanicIfError("database snapshot", err)
	return values, seqnos
}

// answer a request along its hop chain
func (d *Database) reply(hops message.Hops, r message.Response) {
	to, rest, ok := hops.Pop()
	if !ok {
		d.log.Warnf("reply: %s for: %s has no hops", r.Type, r.RequestID)
		return
	}
	r.Hops = rest
	d.send(to, r)
}

func (d *Database) fail(hops message.Hops, key int, t message.RequestType, id message.RequestID) {
	d.stats.Conflicts.Increment()
	d.reply(hops, message.Response{
		Key:       key,
		Values:    nil,
		RequestID: id,
		Type:      t,
	})
}

func (d *Database) onRead(r message.Read) {
	if _, ok := d.locks[r.Key]; ok {
		d.log.Debugf("read: key: %d locked", r.Key)
		d.fail(r.Hops, r.Key, r.Type(), r.RequestID)
		return
	}
	value, seqno, found := d.Get(r.Key)
	if !found {
		d.log.Warnf("read: key: %d not found", r.Key)
		d.reply(r.Hops, message.Response{
			Key:       r.Key,
			RequestID: r.RequestID,
			Type:      r.Type(),
		})
		return
	}
	d.reply(r.Hops, message.Response{
		Key:       r.Key,
		Values:    message.SingleValue(r.Key, value),
		RequestID: r.RequestID,
		Type:      r.Type(),
		Seqno:     seqno,
	})
}

func (d *Database) onWrite(w message.Write) {
	if _, ok := d.locks[w.Key]; ok {
		d.log.Debugf("write: key: %d locked", w.Key)
		d.fail(w.Hops, w.Key, message.TypeWrite, w.RequestID)
		return
	}

	seqno, err := d.store.Commit(w.Key, w.Value)
	fault.PanicIfError("database commit", err)
	d.stats.Commits.Increment()

	d.record(eventlog.Event{
		Sender:     message.Database,
		Receiver:   message.Database,
		Type:       message.TypeWrite,
		IsResponse: true,
		Key:        eventlog.Some(w.Key),
		Value:      eventlog.Some(w.Value),
		Seqno:      eventlog.Some(seqno),
		RequestID:  w.RequestID,
		Text:       "commit",
	})

	_, rest, _ := w.Hops.Pop()
	d.multicast(d.children, message.Response{
		Key:       w.Key,
		Values:    message.SingleValue(w.Key, w.Value),
		Hops:      rest,
		RequestID: w.RequestID,
		Type:      message.TypeWrite,
		Seqno:     seqno,
	}, nil)
}

func (d *Database) onCriticalWrite(w message.Write) {
	if _, ok := d.locks[w.Key]; ok {
		d.log.Debugf("critical write: key: %d locked", w.Key)
		d.fail(w.Hops, w.Key, message.TypeCritWrite, w.RequestID)
		return
	}

	d.locks[w.Key] = w.RequestID
	d.sessions[w.RequestID] = &session{
		key:   w.Key,
		value: w.Value,
		hops:  w.Hops.Copy(),
		votes: make(map[message.Address]bool),
	}
	d.log.Debugf("critical write: %s key: %d value: %d locked", w.RequestID, w.Key, w.Value)

	if 0 == len(d.children) {
		d.commit(w.RequestID)
		return
	}

	d.multicast(d.children, message.CriticalUpdate{
		Key:       w.Key,
		Value:     w.Value,
		RequestID: w.RequestID,
		Hops:      w.Hops,
	}, nil)
	d.schedule(w.RequestID, d.params.CoordinatorTimeout, message.CriticalUpdateTimeout{
		RequestID: w.RequestID,
		Hops:      w.Hops,
	})
}

func (d *Database) onVote(from message.Address, v message.CriticalUpdateResponse) {
	s, ok := d.sessions[v.RequestID]
	if !ok {
		d.log.Debugf("vote: %s from: %d for closed session", v.Vote, from)
		return
	}
	if message.VoteNo == v.Vote {
		d.log.Infof("critical write: %s refused by: %d", v.RequestID, from)
		d.abort(v.RequestID)
		return
	}
	s.votes[from] = true
	for _, c := range d.children {
		if !s.votes[c] {
			return
		}
	}
	d.commit(v.RequestID)
}

func (d *Database) commit(id message.RequestID) {
	s := d.sessions[id]
	d.cancel(id)
	delete(d.sessions, id)
	delete(d.locks, s.key)

	seqno, err := d.store.Commit(s.key, s.value)
	fault.PanicIfError("database commit", err)
	d.stats.Commits.Increment()

	d.record(eventlog.Event{
		Sender:     message.Database,
		Receiver:   message.Database,
		Type:       message.TypeCritWrite,
		IsResponse: true,
		Key:        eventlog.Some(s.key),
		Value:      eventlog.Some(s.value),
		Seqno:      eventlog.Some(seqno),
		RequestID:  id,
		Text:       message.Commit.String(),
	})

	_, rest, _ := s.hops.Pop()
	d.multicast(d.children, message.CriticalWriteResponse{
		Decision:  message.Commit,
		RequestID: id,
		Hops:      rest,
		Key:       s.key,
		Value:     s.value,
		Seqno:     seqno,
	}, nil)
}

func (d *Database) abort(id message.RequestID) {
	s := d.sessions[id]
	d.cancel(id)
	delete(d.sessions, id)
	delete(d.locks, s.key)
	d.stats.Aborts.Increment()

	d.record(eventlog.Event{
		Level:      eventlog.Warning,
		Sender:     message.Database,
		Receiver:   message.Database,
		Type:       message.TypeCritWrite,
		IsResponse: true,
		Key:        eventlog.Some(s.key),
		RequestID:  id,
		Text:       message.Abort.String(),
	})

	_, rest, _ := s.hops.Pop()
	d.multicast(d.children, message.CriticalWriteResponse{
		Decision:  message.Abort,
		RequestID: id,
		Hops:      rest,
		Key:       s.key,
		Value:     s.value,
	}, nil)
}
