// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"math/rand"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/counter"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/messagebus"
)

// mechanics shared by every role
type base struct {
	address   message.Address
	role      Role
	log       *logger.L
	transport Transport
	sink      eventlog.Sink
	params    Parameters
	random    *rand.Rand
	stats     counter.Stats
	timers    map[message.RequestID]messagebus.Timer
	snapshot  snapshot
}

func newBase(address message.Address, role Role, tag string, transport Transport, sink eventlog.Sink, params Parameters) base {
	return base{
		address:   address,
		role:      role,
		log:       logger.New(tag),
		transport: transport,
		sink:      sink,
		params:    params,
		random:    rand.New(rand.NewSource(params.Seed + int64(address))),
		timers:    make(map[message.RequestID]messagebus.Timer),
	}
}

// Address - address of the node
func (b *base) Address() message.Address {
	return b.address
}

// Role - position in the tree
func (b *base) Role() Role {
	return b.role
}

// Stats - event counts of the node
func (b *base) Stats() *counter.Stats {
	return &b.stats
}

// simulated network latency
func (b *base) delay() {
	if b.params.NetworkDelay <= 0 {
		return
	}
	time.Sleep(time.Duration(b.random.Int63n(int64(b.params.NetworkDelay))))
}

// single send, preceded by the simulated delay
func (b *base) send(to message.Address, item message.Message) {
	b.delay()
	b.deliver(to, item)
}

// send to every member of a group with the simulated delay after
// each send
//
// sent is called after each send, returning false abandons the
// remainder of the group and makes multicast return false
func (b *base) multicast(group []message.Address, item message.Message, sent func(n int) bool) bool {
	n := 0
	for _, to := range group {
		if to == b.address {
			continue
		}
		b.deliver(to, item)
		n += 1
		if nil != sent && !sent(n) {
			return false
		}
		b.delay()
	}
	return true
}

func (b *base) deliver(to message.Address, item message.Message) {
	err := b.transport.Send(b.address, to, item)
	if nil != err {
		b.log.Warnf("send: %s to: %d  error: %s", item.Name(), to, err)
	}
}

// arm a self-addressed message, replacing any timer for the same request
func (b *base) schedule(id message.RequestID, d time.Duration, item message.Message) {
	if t, ok := b.timers[id]; ok {
		t.Stop()
	}
	b.timers[id] = b.transport.SendAfter(d, b.address, b.address, item)
}

// stop the timer of a request
func (b *base) cancel(id message.RequestID) {
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
}

// drop a fired timer without stopping it
func (b *base) expire(id message.RequestID) {
	delete(b.timers, id)
}

func (b *base) cancelAll() {
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

// emit an event to the check log
func (b *base) record(e eventlog.Event) {
	if "" == e.Level {
		e.Level = eventlog.Info
	}
	e.Time = time.Now()
	b.sink.Record(e)
}

// log a request as it is sent
func (b *base) recordRequest(to message.Address, t message.RequestType, key int, value eventlog.Optional, seqno eventlog.Optional, id message.RequestID) {
	b.record(eventlog.Event{
		Sender:    b.address,
		Receiver:  to,
		Type:      t,
		Key:       eventlog.Some(key),
		Value:     value,
		Seqno:     seqno,
		RequestID: id,
	})
}

// log a response, by its receiver or by the node answering a client
func (b *base) recordResponse(from message.Address, to message.Address, r message.Response, text string) {
	e := eventlog.Event{
		Sender:     from,
		Receiver:   to,
		Type:       r.Type,
		IsResponse: true,
		Key:        eventlog.Some(r.Key),
		RequestID:  r.RequestID,
		Text:       text,
	}
	if v, ok := r.Value(); ok {
		e.Value = eventlog.Some(v)
		e.Seqno = eventlog.Some(r.Seqno)
	} else {
		e.Level = eventlog.Warning
	}
	b.record(e)
}

// log a cache clear
func (b *base) recordFlush(text string) {
	b.record(eventlog.Event{
		Level:    eventlog.Warning,
		Sender:   b.address,
		Receiver: b.address,
		Type:     message.TypeFlush,
		Text:     text,
	})
}
