// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
)

// state of one snapshot round at a node
type round struct {
	values          map[int]int
	seqnos          map[int]int
	tokens          map[message.Address]bool
	inTransit       map[int]int
	seqnosInTransit map[int]int
}

// per node snapshot state, rounds are keyed by snapshot id so a newer
// round can open while an older one is still waiting for markers
type snapshot struct {
	latest int
	peers  []message.Address
	rounds map[int]*round
}

// current local values and seqnos, copied
type stateFunc func() (map[int]int, map[int]int)

// SnapshotID - id of the latest round seen
func (b *base) SnapshotID() int {
	return b.snapshot.latest
}

// Capturing - true while any round is open at this node
func (b *base) Capturing() bool {
	return len(b.snapshot.rounds) > 0
}

func (b *base) setSnapshotPeers(peers []message.Address) {
	b.snapshot.peers = append([]message.Address(nil), peers...)
}

// begin a new round at the initiator
func (b *base) startSnapshot(state stateFunc) {
	if b.Capturing() {
		b.log.Warnf("snapshot: %d still open, start ignored", b.snapshot.latest)
		return
	}
	b.snapshot.latest += 1
	b.log.Infof("snapshot: %d starting", b.snapshot.latest)
	b.capture(b.snapshot.latest, state)
	b.completeSnapshot(b.snapshot.latest)
}

// handle a marker from a peer
func (b *base) onToken(from message.Address, token message.Token, state stateFunc) {
	id := token.SnapshotID
	r, ok := b.snapshot.rounds[id]
	if !ok {
		if id <= b.snapshot.latest {
			b.log.Debugf("snapshot: %d from: %d already closed", id, from)
			return
		}
		b.snapshot.latest = id
		r = b.capture(id, state)
	}
	r.tokens[from] = true
	b.completeSnapshot(id)
}

// freeze local state and pass the marker on
func (b *base) capture(id int, state stateFunc) *round {
	values, seqnos := state()
	r := &round{
		values:          values,
		seqnos:          seqnos,
		tokens:          map[message.Address]bool{b.address: true},
		inTransit:       make(map[int]int),
		seqnosInTransit: make(map[int]int),
	}
	if nil == b.snapshot.rounds {
		b.snapshot.rounds = make(map[int]*round)
	}
	b.snapshot.rounds[id] = r

	b.log.Debugf("snapshot: %d captured %d keys", id, len(values))
	b.multicast(b.snapshot.peers, message.Token{SnapshotID: id}, nil)
	return r
}

// record a payload that was in flight on a channel not yet marked
func (b *base) recordTransit(from message.Address, key int, value int, seqno eventlog.Optional) {
	if !b.isSnapshotPeer(from) {
		return
	}
	for _, r := range b.snapshot.rounds {
		if r.tokens[from] {
			continue
		}
		r.inTransit[key] = value
		if seqno.Set {
			r.seqnosInTransit[key] = seqno.Value
		}
	}
}

// inspect an incoming message for snapshot payloads
func (b *base) observe(from message.Address, item message.Message) {
	if !b.Capturing() {
		return
	}
	switch m := item.(type) {
	case message.Write:
		b.recordTransit(from, m.Key, m.Value, eventlog.None)
	case message.Response:
		for k, v := range m.Values {
			b.recordTransit(from, k, v, eventlog.Some(m.Seqno))
		}
	case message.CriticalUpdate:
		b.recordTransit(from, m.Key, m.Value, eventlog.None)
	case message.CriticalWriteResponse:
		if message.Commit == m.Decision {
			b.recordTransit(from, m.Key, m.Value, eventlog.Some(m.Seqno))
		}
	}
}

func (b *base) isSnapshotPeer(a message.Address) bool {
	for _, p := range b.snapshot.peers {
		if p == a {
			return true
		}
	}
	return false
}

// close a round once every peer's marker has arrived
func (b *base) completeSnapshot(id int) {
	r := b.snapshot.rounds[id]
	for _, p := range b.snapshot.peers {
		if !r.tokens[p] {
			return
		}
	}

	record := eventlog.SnapshotRecord{
		Node:            b.address,
		SnapshotID:      id,
		Values:          r.values,
		Seqnos:          r.seqnos,
		InTransit:       r.inTransit,
		SeqnosInTransit: r.seqnosInTransit,
	}
	b.log.Infof("snapshot: %d state: %v seqnos: %v in transit: %v seqnos in transit: %v",
		record.SnapshotID, record.Values, record.Seqnos, record.InTransit, record.SeqnosInTransit)
	b.sink.Snapshot(record)

	delete(b.snapshot.rounds, id)
}
