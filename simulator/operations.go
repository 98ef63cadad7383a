// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simulator

import (
	"context"
	"time"

	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/node"
)

// interval between checks for idle clients
const idlePoll = 10 * time.Millisecond

// Totals - outcome counts of all clients
type Totals struct {
	Requests  uint64
	Succeeded uint64
	Failed    uint64
	Crashes   uint64
	Snapshots uint64
}

// called on a client goroutine for every finished request
func (s *Simulator) deliver(o node.Outcome) {
	s.Lock()
	defer s.Unlock()

	if nil == o.Err {
		s.totals.Succeeded += 1
	} else {
		s.totals.Failed += 1
	}

	// a refusal does not end the request that caused it
	if fault.ErrClientBusy == o.Err {
		return
	}
	delete(s.busy, o.Client)
	if w, ok := s.waiters[o.Client]; ok {
		delete(s.waiters, o.Client)
		w <- o
	}
}

// Read - read a key through a client and wait for the outcome
func (s *Simulator) Read(ctx context.Context, client message.Address, key int) (node.Outcome, error) {
	return s.request(ctx, client, message.Read{Key: key})
}

// CritRead - read a key from the database through a client
func (s *Simulator) CritRead(ctx context.Context, client message.Address, key int) (node.Outcome, error) {
	return s.request(ctx, client, message.Read{Key: key, Critical: true})
}

// Write - write a key through a client and wait for the outcome
func (s *Simulator) Write(ctx context.Context, client message.Address, key int, value int) (node.Outcome, error) {
	return s.request(ctx, client, message.Write{Key: key, Value: value})
}

// CritWrite - write a key atomically across the tree
func (s *Simulator) CritWrite(ctx context.Context, client message.Address, key int, value int) (node.Outcome, error) {
	return s.request(ctx, client, message.Write{Key: key, Value: value, Critical: true})
}

func (s *Simulator) request(ctx context.Context, client message.Address, item message.Message) (node.Outcome, error) {
	w := make(chan node.Outcome, 1)
	if err := s.submit(client, item, w); nil != err {
		return node.Outcome{}, err
	}

	select {
	case o, ok := <-w:
		if !ok {
			return node.Outcome{}, fault.ErrQueueClosed
		}
		return o, o.Err
	case <-ctx.Done():
		s.Lock()
		if s.waiters[client] == w {
			delete(s.waiters, client)
		}
		s.Unlock()
		return node.Outcome{}, ctx.Err()
	}
}

// Submit - start a request without waiting for it
//
// the outcome only shows in Totals and in the event log
func (s *Simulator) Submit(client message.Address, item message.Message) error {
	return s.submit(client, item, nil)
}

func (s *Simulator) submit(client message.Address, item message.Message, w chan node.Outcome) error {
	switch item.(type) {
	case message.Read, message.Write:
	default:
		return fault.ErrInvalidRequestType
	}

	s.Lock()
	if nil == s.running || s.stopped {
		s.Unlock()
		return fault.ErrSimulatorNotStarted
	}
	if !s.isClient(client) {
		s.Unlock()
		return fault.ErrUnknownClient
	}
	if s.busy[client] {
		s.Unlock()
		return fault.ErrClientBusy
	}
	s.busy[client] = true
	s.totals.Requests += 1
	if nil != w {
		s.waiters[client] = w
	}
	s.Unlock()

	// unlocked, deliver takes the lock on the client goroutine
	err := s.bus.Send(message.External, client, item)
	if nil != err {
		s.Lock()
		delete(s.busy, client)
		delete(s.waiters, client)
		s.totals.Requests -= 1
		s.Unlock()
	}
	return err
}

// Idle - true if no client has a request outstanding
func (s *Simulator) Idle() bool {
	s.Lock()
	defer s.Unlock()
	return 0 == len(s.busy)
}

// WaitIdle - block until every client has finished its request
func (s *Simulator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for !s.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Crash - arm a crash point at a cache
func (s *Simulator) Crash(cache message.Address, point message.CrashPoint, recoverIn time.Duration) error {
	tier := s.tierOf(cache)
	if 0 == tier {
		return fault.ErrInvalidAddress
	}
	if !point.Valid() || point.Tier != tier {
		return fault.ErrInvalidCrashPoint
	}
	s.log.Infof("crash: cache: %d point: %s recover in: %s", cache, point, recoverIn)
	if err := s.send(cache, message.Crash{Point: point, RecoverIn: recoverIn}); nil != err {
		return err
	}
	s.Lock()
	s.totals.Crashes += 1
	s.Unlock()
	return nil
}

// Flush - clear a cache, also restores a degenerated L2
func (s *Simulator) Flush(cache message.Address) error {
	if 0 == s.tierOf(cache) {
		return fault.ErrInvalidAddress
	}
	return s.send(cache, message.Flush{})
}

// Snapshot - start a snapshot round at the database
func (s *Simulator) Snapshot() error {
	if err := s.send(message.Database, message.StartSnapshot{}); nil != err {
		return err
	}
	s.Lock()
	s.totals.Snapshots += 1
	s.Unlock()
	return nil
}

func (s *Simulator) send(to message.Address, item message.Message) error {
	s.Lock()
	started := nil != s.running && !s.stopped
	s.Unlock()
	if !started {
		return fault.ErrSimulatorNotStarted
	}
	return s.bus.Send(message.External, to, item)
}

func (s *Simulator) isClient(a message.Address) bool {
	first := message.Address(1 + len(s.l1) + len(s.l2))
	return a >= first && a < first+message.Address(len(s.clients))
}

// 1 for L1, 2 for L2, 0 for anything else
func (s *Simulator) tierOf(a message.Address) int {
	switch {
	case a >= 1 && a <= message.Address(len(s.l1)):
		return 1
	case a > message.Address(len(s.l1)) && a <= message.Address(len(s.l1)+len(s.l2)):
		return 2
	default:
		return 0
	}
}
