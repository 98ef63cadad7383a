// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus

import (
	"sync"
	"time"

	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

// internal constants
const (
	queueSize = 1000
)

// Message - an item together with its sender
type Message struct {
	From message.Address
	Item message.Message
}

// Timer - handle to a delayed send
type Timer interface {
	Stop() bool
}

// Bus - the set of queues of one simulation
type Bus struct {
	sync.RWMutex
	queues map[message.Address]chan Message
	done   chan struct{}
	closed bool
}

// New - create an empty bus
func New() *Bus {
	return &Bus{
		queues: make(map[message.Address]chan Message),
		done:   make(chan struct{}),
	}
}

// Register - create the queue for an address
func (b *Bus) Register(to message.Address) (<-chan Message, error) {
	b.Lock()
	defer b.Unlock()

	if b.closed {
		return nil, fault.ErrQueueClosed
	}
	if _, ok := b.queues[to]; ok {
		return nil, fault.ErrAlreadyRegistered
	}
	queue := make(chan Message, queueSize)
	b.queues[to] = queue
	return queue, nil
}

// Send - queue an item, blocks while the destination queue is full
func (b *Bus) Send(from message.Address, to message.Address, item message.Message) error {
	b.RLock()
	queue, ok := b.queues[to]
	closed := b.closed
	b.RUnlock()

	if closed {
		return fault.ErrQueueClosed
	}
	if !ok {
		return fault.ErrUnknownAddress
	}

	select {
	case queue <- Message{From: from, Item: item}:
		return nil
	case <-b.done:
		return fault.ErrQueueClosed
	}
}

// SendAfter - queue an item once a delay has elapsed
//
// stopping the returned timer before it fires discards the item
func (b *Bus) SendAfter(d time.Duration, from message.Address, to message.Address, item message.Message) Timer {
	return time.AfterFunc(d, func() {
		_ = b.Send(from, to, item)
	})
}

// Done - closed when the bus shuts down
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Close - stop accepting messages and release any blocked senders
func (b *Bus) Close() {
	b.Lock()
	defer b.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}
