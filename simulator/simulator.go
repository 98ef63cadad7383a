// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/background"
	"github.com/bitmark-inc/distcache/configuration"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/messagebus"
	"github.com/bitmark-inc/distcache/node"
	"github.com/bitmark-inc/distcache/storage"
)

// Simulator - a complete tree on one message bus
type Simulator struct {
	sync.Mutex

	log    *logger.L
	conf   *configuration.Configuration
	params node.Parameters
	bus    *messagebus.Bus
	sink   eventlog.Sink
	store  *storage.Store
	random *rand.Rand

	database *node.Database
	l1       []*node.Cache
	l2       []*node.Cache
	clients  []*node.Client

	processes background.Processes
	running   *background.T
	stopped   bool

	// client address → outstanding request
	busy    map[message.Address]bool
	waiters map[message.Address]chan node.Outcome
	totals  Totals
}

// New - build the tree described by a configuration
//
// the initial database contents are drawn from the seed and written to
// the sink together with the tree shape
func New(conf *configuration.Configuration, sink eventlog.Sink) (*Simulator, error) {
	if err := conf.Validate(); nil != err {
		return nil, err
	}

	seed := conf.Seed
	if 0 == seed {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		log:  logger.New("simulator"),
		conf: conf,
		params: node.Parameters{
			NetworkDelay:       configuration.Milliseconds(conf.Timing.NetworkDelay),
			CacheTimeout:       configuration.Milliseconds(conf.Timing.CacheTimeout),
			ParticipantTimeout: configuration.Milliseconds(conf.Timing.ParticipantTimeout),
			CoordinatorTimeout: configuration.Milliseconds(conf.Timing.CoordinatorTimeout),
			ClientTimeout:      configuration.Milliseconds(conf.Timing.ClientTimeout),
			ClientRetries:      conf.Timing.ClientRetries,
			Seed:               seed,
		},
		bus:     messagebus.New(),
		sink:    sink,
		random:  rand.New(rand.NewSource(seed)),
		busy:    make(map[message.Address]bool),
		waiters: make(map[message.Address]chan node.Outcome),
	}
	s.log.Infof("seed: %d", seed)

	initial := make(map[int]int, conf.Tree.Keys)
	for key := 0; key < conf.Tree.Keys; key += 1 {
		initial[key] = s.random.Intn(conf.Tree.MaxValue)
	}

	store, err := storage.New(initial)
	if nil != err {
		return nil, err
	}
	s.store = store

	sink.Configuration(conf.Tree.L1, conf.Tree.L2, conf.Tree.Clients)
	sink.Database(initial)

	if err := s.assemble(); nil != err {
		s.bus.Close()
		store.Close()
		return nil, err
	}
	return s, nil
}

// create every node, register its queue and queue the group joins
func (s *Simulator) assemble() error {
	s.database = node.NewDatabase(s.store, s.bus, s.sink, s.params)
	if err := s.add(s.database); nil != err {
		return err
	}

	next := message.Address(1)
	l1Addresses := make([]message.Address, 0, s.conf.Tree.L1)
	for i := 0; i < s.conf.Tree.L1; i += 1 {
		c := node.NewL1(next, s.bus, s.sink, s.params)
		if err := s.add(c); nil != err {
			return err
		}
		s.l1 = append(s.l1, c)
		l1Addresses = append(l1Addresses, next)
		next += 1
	}

	l2Addresses := make([]message.Address, 0, s.conf.Tree.L1*s.conf.Tree.L2)
	joins := make(map[message.Address][]message.Address)
	for _, parent := range s.l1 {
		children := make([]message.Address, 0, s.conf.Tree.L2)
		for j := 0; j < s.conf.Tree.L2; j += 1 {
			c := node.NewL2(next, parent.Address(), s.bus, s.sink, s.params)
			if err := s.add(c); nil != err {
				return err
			}
			s.l2 = append(s.l2, c)
			children = append(children, next)
			l2Addresses = append(l2Addresses, next)
			next += 1
		}
		joins[parent.Address()] = children
	}

	for i := 0; i < s.conf.Tree.Clients; i += 1 {
		c := node.NewClient(next, s.bus, s.sink, s.params, s.deliver)
		if err := s.add(c); nil != err {
			return err
		}
		s.clients = append(s.clients, c)
		next += 1
	}

	// queued before any process runs, so every node has joined before
	// its first request
	join := func(to message.Address, peers []message.Address) error {
		return s.bus.Send(message.External, to, message.JoinGroup{Peers: peers})
	}
	if err := join(message.Database, l1Addresses); nil != err {
		return err
	}
	for _, c := range s.l1 {
		if err := join(c.Address(), joins[c.Address()]); nil != err {
			return err
		}
	}
	for _, c := range s.l2 {
		if err := join(c.Address(), nil); nil != err {
			return err
		}
	}
	for _, c := range s.clients {
		if err := join(c.Address(), l2Addresses); nil != err {
			return err
		}
	}
	return nil
}

func (s *Simulator) add(n node.Node) error {
	queue, err := s.bus.Register(n.Address())
	if nil != err {
		return err
	}
	s.processes = append(s.processes, node.NewProcess(n, queue))
	return nil
}

// Start - run every node
func (s *Simulator) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.stopped {
		return fault.ErrQueueClosed
	}
	if nil != s.running {
		return fault.ErrAlreadyInitialised
	}
	s.log.Infof("start: %d nodes", len(s.processes))
	s.running = background.Start(s.processes, s.log)
	return nil
}

// Stop - shut down the nodes and release the store
//
// the bus is closed first to release any sender blocked on a full queue
func (s *Simulator) Stop() {
	s.Lock()
	if s.stopped {
		s.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	for a, w := range s.waiters {
		close(w)
		delete(s.waiters, a)
	}
	s.Unlock()

	s.log.Info("stopping")
	s.bus.Close()
	if nil != running {
		running.Stop()
	}
	if err := s.store.Close(); nil != err {
		s.log.Errorf("store close error: %s", err)
	}
	s.log.Info("stopped")
}

// Clients - addresses of all clients
func (s *Simulator) Clients() []message.Address {
	addresses := make([]message.Address, 0, len(s.clients))
	for _, c := range s.clients {
		addresses = append(addresses, c.Address())
	}
	return addresses
}

// Caches - addresses of all L1 then all L2 caches
func (s *Simulator) Caches() []message.Address {
	addresses := make([]message.Address, 0, len(s.l1)+len(s.l2))
	for _, c := range s.l1 {
		addresses = append(addresses, c.Address())
	}
	for _, c := range s.l2 {
		addresses = append(addresses, c.Address())
	}
	return addresses
}

// Database - the root node, its Get is safe while running
func (s *Simulator) Database() *node.Database {
	return s.database
}

// Statistics - counts of every node by address
func (s *Simulator) Statistics() map[message.Address]map[string]uint64 {
	result := make(map[message.Address]map[string]uint64)
	result[message.Database] = s.database.Stats().Values()
	for _, c := range s.l1 {
		result[c.Address()] = c.Stats().Values()
	}
	for _, c := range s.l2 {
		result[c.Address()] = c.Stats().Values()
	}
	for _, c := range s.clients {
		result[c.Address()] = c.Stats().Values()
	}
	return result
}

// Totals - copy of the outcome counts so far
func (s *Simulator) Totals() Totals {
	s.Lock()
	defer s.Unlock()
	return s.totals
}

// String - the tree with the current state of each cache
func (s *Simulator) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d\n", node.RoleDatabase, message.Database)
	for i, l1 := range s.l1 {
		fmt.Fprintf(&b, "  %s: %d (%s)\n", l1.Role(), l1.Address(), l1.State())
		for _, l2 := range s.l2[i*s.conf.Tree.L2 : (i+1)*s.conf.Tree.L2] {
			fmt.Fprintf(&b, "    %s: %d (%s)\n", l2.Role(), l2.Address(), l2.State())
		}
	}
	b.WriteString("clients:")
	for _, c := range s.clients {
		fmt.Fprintf(&b, " %d", c.Address())
	}
	b.WriteString("\n")
	return b.String()
}
