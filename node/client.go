// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"fmt"

	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

// Outcome - result of one client request
type Outcome struct {
	Client    message.Address
	RequestID message.RequestID // id of the last attempt
	Type      message.RequestType
	Key       int
	Value     int
	Seqno     int
	Attempts  int
	Err       error
}

// Client - issues one request at a time to a randomly chosen L2
type Client struct {
	base
	caches  []message.Address
	current *request
	seqnos  map[int]int
	report  func(Outcome)
}

// the outstanding request
type request struct {
	id       message.RequestID
	t        message.RequestType
	key      int
	value    int
	attempts int
}

// NewClient - create a client, report receives every outcome on the
// client's goroutine
func NewClient(address message.Address, transport Transport, sink eventlog.Sink, params Parameters, report func(Outcome)) *Client {
	return &Client{
		base:   newBase(address, RoleClient, fmt.Sprintf("client-%d", address), transport, sink, params),
		seqnos: make(map[int]int),
		report: report,
	}
}

// Caches - L2 caches still considered reachable
//
// only safe to call when the node is not running
func (c *Client) Caches() []message.Address {
	return append([]message.Address(nil), c.caches...)
}

// Seqno - highest seqno seen for a key
//
// only safe to call when the node is not running
func (c *Client) Seqno(key int) (int, bool) {
	s, ok := c.seqnos[key]
	return s, ok
}

// Receive - process one message
//
// Read and Write from outside the tree start a new request
func (c *Client) Receive(from message.Address, item message.Message) {
	c.stats.Received.Increment()

	switch m := item.(type) {
	case message.JoinGroup:
		c.caches = append([]message.Address(nil), m.Peers...)
		c.log.Infof("join: caches: %v", c.caches)
	case message.Read:
		c.start(m.Type(), m.Key, 0)
	case message.Write:
		c.start(m.Type(), m.Key, m.Value)
	case message.Response:
		c.onResponse(from, m)
	case message.Timeout:
		c.onTimeout(m)
	default:
		c.log.Debugf("ignore: %s from: %d", item.Name(), from)
	}
}

func (c *Client) start(t message.RequestType, key int, value int) {
	if nil != c.current {
		c.log.Warnf("%s: key: %d refused while: %s is outstanding", t, key, c.current.id)
		c.finishWith(&request{t: t, key: key, value: value}, Outcome{Err: fault.ErrClientBusy})
		return
	}
	c.current = &request{
		t:     t,
		key:   key,
		value: value,
	}
	c.issue()
}

// send the current request to a random cache with a fresh id
func (c *Client) issue() {
	r := c.current
	if 0 == len(c.caches) {
		c.finish(Outcome{Err: fault.ErrNoCacheAvailable})
		return
	}

	r.attempts += 1
	r.id = message.NewRequestID()
	target := c.caches[c.random.Intn(len(c.caches))]
	hops := message.Hops{c.address}

	var item message.Message
	value := eventlog.None
	seqno := eventlog.None
	switch r.t {
	case message.TypeRead, message.TypeCritRead:
		last := c.lastSeqno(r.key)
		if last >= 0 {
			seqno = eventlog.Some(last)
		}
		item = message.Read{
			Key:       r.key,
			Hops:      hops,
			RequestID: r.id,
			Critical:  message.TypeCritRead == r.t,
			Seqno:     last,
		}
	default:
		value = eventlog.Some(r.value)
		item = message.Write{
			Key:       r.key,
			Value:     r.value,
			Hops:      hops,
			RequestID: r.id,
			Critical:  message.TypeCritWrite == r.t,
		}
	}

	c.log.Debugf("%s: key: %d attempt: %d to: %d id: %s", r.t, r.key, r.attempts, target, r.id)
	c.recordRequest(target, r.t, r.key, value, seqno, r.id)
	c.send(target, item)
	c.schedule(r.id, c.params.ClientTimeout, message.Timeout{Original: item, Suspect: target})
}

func (c *Client) onResponse(from message.Address, r message.Response) {
	if nil == c.current || r.RequestID != c.current.id {
		c.log.Debugf("late response: %s from: %d", r.RequestID, from)
		return
	}
	c.cancel(r.RequestID)

	v, ok := r.Value()
	if !ok {
		c.finish(Outcome{Err: fault.ErrRequestFailed})
		return
	}
	if last, seen := c.seqnos[r.Key]; !seen || r.Seqno > last {
		c.seqnos[r.Key] = r.Seqno
	}
	c.finish(Outcome{
		Value: v,
		Seqno: r.Seqno,
	})
}

func (c *Client) onTimeout(t message.Timeout) {
	id := requestID(t.Original)
	c.expire(id)
	if nil == c.current || id != c.current.id {
		return
	}
	c.stats.Timeouts.Increment()
	c.log.Warnf("timeout: %s on: %d", id, t.Suspect)

	switch c.current.t {
	case message.TypeRead, message.TypeCritRead:
		c.drop(t.Suspect)
	}

	if c.current.attempts > c.params.ClientRetries {
		c.finish(Outcome{Err: fault.ErrClientTimeout})
		return
	}
	c.issue()
}

// forget an unresponsive cache
func (c *Client) drop(a message.Address) {
	for i, cache := range c.caches {
		if cache == a {
			c.caches = append(c.caches[:i:i], c.caches[i+1:]...)
			c.log.Infof("drop cache: %d  remaining: %v", a, c.caches)
			return
		}
	}
}

func (c *Client) lastSeqno(key int) int {
	if s, ok := c.seqnos[key]; ok {
		return s
	}
	return -1
}

// complete the current request
func (c *Client) finish(o Outcome) {
	r := c.current
	c.current = nil
	c.finishWith(r, o)
}

func (c *Client) finishWith(r *request, o Outcome) {
	o.Client = c.address
	o.RequestID = r.id
	o.Type = r.t
	o.Key = r.key
	o.Attempts = r.attempts
	if nil == o.Err {
		c.log.Infof("%s: key: %d value: %d seqno: %d", o.Type, o.Key, o.Value, o.Seqno)
	} else {
		c.log.Infof("%s: key: %d error: %s", o.Type, o.Key, o.Err)
	}
	if nil != c.report {
		c.report(o)
	}
}
