// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"time"

	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/messagebus"
)

// Node - anything that can receive protocol messages
type Node interface {
	Address() message.Address
	Receive(from message.Address, item message.Message)
}

// Transport - delivery of messages between nodes
//
// satisfied by *messagebus.Bus
type Transport interface {
	Send(from message.Address, to message.Address, item message.Message) error
	SendAfter(d time.Duration, from message.Address, to message.Address, item message.Message) messagebus.Timer
}

// Parameters - timing shared by all nodes of a simulation
type Parameters struct {
	NetworkDelay       time.Duration // upper bound of the random delay around sends
	CacheTimeout       time.Duration // L2 waiting on its parent
	ParticipantTimeout time.Duration // L1 waiting for votes
	CoordinatorTimeout time.Duration // database waiting for votes
	ClientTimeout      time.Duration
	ClientRetries      int
	Seed               int64
}

// Role - position of a node in the tree
type Role int

// all roles
const (
	RoleDatabase Role = iota
	RoleL1
	RoleL2
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleDatabase:
		return "Database"
	case RoleL1:
		return "L1"
	case RoleL2:
		return "L2"
	case RoleClient:
		return "Client"
	default:
		return "*Unknown*"
	}
}

// State - processing mode of a cache
type State int32

// all states
const (
	Normal State = iota
	Crashed
	Unavailable
)

func (s State) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Crashed:
		return "Crashed"
	case Unavailable:
		return "Unavailable"
	default:
		return "*Unknown*"
	}
}
