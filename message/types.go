// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"strconv"

	"github.com/pborman/uuid"
)

// Address - identifies a node in the tree
type Address int

// well known addresses
const (
	External Address = -1 // the simulator or a test harness
	Database Address = 0
)

func (a Address) String() string {
	return strconv.Itoa(int(a))
}

// RequestID - identifies one client request end to end
type RequestID string

// NoRequest - request id of a message not yet bound to a request
const NoRequest RequestID = ""

// NewRequestID - create a fresh random request id
func NewRequestID() RequestID {
	return RequestID(uuid.New())
}

func (r RequestID) String() string {
	if NoRequest == r {
		return "null"
	}
	return string(r)
}

// RequestType - kind of client operation, also used to tag log events
type RequestType int

// all request types
const (
	TypeRead RequestType = iota
	TypeWrite
	TypeCritRead
	TypeCritWrite
	TypeFlush
	TypeSnapshot
	maximumRequestType
)

var requestTypeNames = [...]string{
	TypeRead:      "READ",
	TypeWrite:     "WRITE",
	TypeCritRead:  "CRITREAD",
	TypeCritWrite: "CRITWRITE",
	TypeFlush:     "FLUSH",
	TypeSnapshot:  "SNAPSHOT",
}

func (t RequestType) String() string {
	if t < 0 || t >= maximumRequestType {
		return "*Unknown*"
	}
	return requestTypeNames[t]
}

// ParseRequestType - inverse of String
func ParseRequestType(s string) (RequestType, bool) {
	for i, name := range requestTypeNames {
		if name == s {
			return RequestType(i), true
		}
	}
	return 0, false
}

// Vote - a participant's answer to a CriticalUpdate
type Vote bool

// the possible votes
const (
	VoteNo Vote = false
	VoteOK Vote = true
)

func (v Vote) String() string {
	if v {
		return "OK"
	}
	return "NO"
}

// Decision - outcome of a critical write
type Decision bool

// the possible decisions
const (
	Abort  Decision = false
	Commit Decision = true
)

func (d Decision) String() string {
	if d {
		return "COMMIT"
	}
	return "ABORT"
}

// Hops - the chain of addresses a request has traversed
type Hops []Address

// Push - return a copy of the chain with a extended by one address
func (h Hops) Push(a Address) Hops {
	n := make(Hops, len(h), len(h)+1)
	copy(n, h)
	return append(n, a)
}

// Pop - return the last address and a copy of the chain without it
//
// ok is false for an empty chain
func (h Hops) Pop() (Address, Hops, bool) {
	if 0 == len(h) {
		return External, nil, false
	}
	n := make(Hops, len(h)-1)
	copy(n, h[:len(h)-1])
	return h[len(h)-1], n, true
}

// Last - the most recent hop
func (h Hops) Last() (Address, bool) {
	if 0 == len(h) {
		return External, false
	}
	return h[len(h)-1], true
}

// First - the originator of the request
func (h Hops) First() (Address, bool) {
	if 0 == len(h) {
		return External, false
	}
	return h[0], true
}

// Copy - an independent copy of the chain
func (h Hops) Copy() Hops {
	if nil == h {
		return nil
	}
	n := make(Hops, len(h))
	copy(n, h)
	return n
}
