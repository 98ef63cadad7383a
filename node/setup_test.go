// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node_test

import (
	"os"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/cache"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/messagebus"
	"github.com/bitmark-inc/distcache/node"
	"github.com/bitmark-inc/distcache/storage"
)

const (
	testingDirName = "testing"
)

func TestMain(m *testing.M) {
	setupTestLogger()
	rc := m.Run()
	teardownTestLogger()
	os.Exit(rc)
}

func setupTestLogger() {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func teardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func removeFiles() {
	_ = os.RemoveAll(testingDirName)
}

// a message waiting for delivery
type envelope struct {
	from message.Address
	to   message.Address
	item message.Message
}

// timer that only fires when the test says so
type manualTimer struct {
	envelope
	stopped bool
	fired   bool
}

func (m *manualTimer) Stop() bool {
	if m.stopped || m.fired {
		return false
	}
	m.stopped = true
	return true
}

// synchronous single queue network, global FIFO order keeps the
// order between every pair of nodes
type network struct {
	nodes    map[message.Address]node.Node
	queue    []envelope
	timers   []*manualTimer
	external []envelope
}

func newNetwork() *network {
	return &network{
		nodes: make(map[message.Address]node.Node),
	}
}

func (n *network) add(nd node.Node) {
	n.nodes[nd.Address()] = nd
}

func (n *network) Send(from message.Address, to message.Address, item message.Message) error {
	if _, ok := n.nodes[to]; !ok && message.External != to {
		return fault.ErrUnknownAddress
	}
	n.queue = append(n.queue, envelope{from: from, to: to, item: item})
	return nil
}

func (n *network) SendAfter(d time.Duration, from message.Address, to message.Address, item message.Message) messagebus.Timer {
	t := &manualTimer{envelope: envelope{from: from, to: to, item: item}}
	n.timers = append(n.timers, t)
	return t
}

// inject a message from outside the tree
func (n *network) inject(to message.Address, item message.Message) {
	n.queue = append(n.queue, envelope{from: message.External, to: to, item: item})
}

// the next message to be delivered
func (n *network) peek() (envelope, bool) {
	if 0 == len(n.queue) {
		return envelope{}, false
	}
	return n.queue[0], true
}

// deliver one message
func (n *network) step() bool {
	if 0 == len(n.queue) {
		return false
	}
	e := n.queue[0]
	n.queue = n.queue[1:]
	if message.External == e.to {
		n.external = append(n.external, e)
		return true
	}
	n.nodes[e.to].Receive(e.from, e.item)
	return true
}

// deliver until nothing is queued
func (n *network) settle() {
	for n.step() {
	}
}

// deliver until a condition holds, false if the queue drained first
func (n *network) until(condition func() bool) bool {
	for !condition() {
		if !n.step() {
			return false
		}
	}
	return true
}

// fire every armed timer a filter selects
func (n *network) fire(filter func(e envelope) bool) int {
	count := 0
	for _, t := range n.timers {
		if t.stopped || t.fired || !filter(t.envelope) {
			continue
		}
		t.fired = true
		n.queue = append(n.queue, t.envelope)
		count += 1
	}
	return count
}

// number of armed timers a filter selects
func (n *network) armed(filter func(e envelope) bool) int {
	count := 0
	for _, t := range n.timers {
		if !t.stopped && !t.fired && filter(t.envelope) {
			count += 1
		}
	}
	return count
}

func timerFor(to message.Address, kind string) func(e envelope) bool {
	return func(e envelope) bool {
		return to == e.to && kind == e.item.Name()
	}
}

// a complete tree on the manual network
type tree struct {
	net      *network
	sink     *eventlog.Memory
	db       *node.Database
	l1       []*node.Cache
	l2       []*node.Cache
	clients  []*node.Client
	outcomes []node.Outcome
}

var testParameters = node.Parameters{
	NetworkDelay:       0,
	CacheTimeout:       2 * time.Second,
	ParticipantTimeout: 600 * time.Millisecond,
	CoordinatorTimeout: time.Second,
	ClientTimeout:      3 * time.Second,
	ClientRetries:      2,
	Seed:               1,
}

// addresses: database 0, L1 1..nL1, L2 per L1 in order, then clients
func newTree(t *testing.T, nL1 int, nL2 int, nClients int, initial map[int]int) *tree {
	store, err := storage.New(initial)
	if nil != err {
		t.Fatalf("storage error: %s", err)
	}

	tr := &tree{
		net:  newNetwork(),
		sink: eventlog.NewMemory(),
	}
	tr.db = node.NewDatabase(store, tr.net, tr.sink, testParameters)
	tr.net.add(tr.db)

	next := message.Address(1)
	l1Addresses := make([]message.Address, 0, nL1)
	for i := 0; i < nL1; i += 1 {
		c := node.NewL1(next, tr.net, tr.sink, testParameters)
		tr.l1 = append(tr.l1, c)
		tr.net.add(c)
		l1Addresses = append(l1Addresses, next)
		next += 1
	}

	l2Addresses := make([]message.Address, 0, nL1*nL2)
	for _, parent := range tr.l1 {
		children := make([]message.Address, 0, nL2)
		for j := 0; j < nL2; j += 1 {
			c := node.NewL2(next, parent.Address(), tr.net, tr.sink, testParameters)
			tr.l2 = append(tr.l2, c)
			tr.net.add(c)
			children = append(children, next)
			l2Addresses = append(l2Addresses, next)
			next += 1
		}
		parent.Receive(message.External, message.JoinGroup{Peers: children})
	}
	for _, c := range tr.l2 {
		c.Receive(message.External, message.JoinGroup{})
	}
	tr.db.Receive(message.External, message.JoinGroup{Peers: l1Addresses})

	for i := 0; i < nClients; i += 1 {
		c := node.NewClient(next, tr.net, tr.sink, testParameters, func(o node.Outcome) {
			tr.outcomes = append(tr.outcomes, o)
		})
		c.Receive(message.External, message.JoinGroup{Peers: l2Addresses})
		tr.clients = append(tr.clients, c)
		tr.net.add(c)
		next += 1
	}
	return tr
}

// last outcome reported by a client
func (tr *tree) outcome(t *testing.T, client int) node.Outcome {
	a := tr.clients[client].Address()
	for i := len(tr.outcomes) - 1; i >= 0; i -= 1 {
		if a == tr.outcomes[i].Client {
			return tr.outcomes[i]
		}
	}
	t.Fatalf("no outcome for client: %d", a)
	return node.Outcome{}
}

func (tr *tree) read(client int, key int) {
	tr.net.inject(tr.clients[client].Address(), message.Read{Key: key})
}

func (tr *tree) critRead(client int, key int) {
	tr.net.inject(tr.clients[client].Address(), message.Read{Key: key, Critical: true})
}

func (tr *tree) write(client int, key int, value int) {
	tr.net.inject(tr.clients[client].Address(), message.Write{Key: key, Value: value})
}

func (tr *tree) critWrite(client int, key int, value int) {
	tr.net.inject(tr.clients[client].Address(), message.Write{Key: key, Value: value, Critical: true})
}

// events matching a filter
func (tr *tree) events(filter func(e eventlog.Event) bool) []eventlog.Event {
	return tr.sink.Events(filter)
}

func flushesBy(a message.Address) func(e eventlog.Event) bool {
	return func(e eventlog.Event) bool {
		return message.TypeFlush == e.Type && a == e.Sender
	}
}

func cacheEntry(value int, seqno int) cache.Entry {
	return cache.Entry{Value: value, Seqno: seqno}
}
