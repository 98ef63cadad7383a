// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"time"
)

// Message - any item that can be delivered to a node
type Message interface {
	Name() string
}

// JoinGroup - topology announcement delivered before any traffic
//
// internal nodes receive their direct children, clients receive the
// L2 caches they may contact
type JoinGroup struct {
	Peers []Address
}

// Read - a read or critical read travelling towards the database
type Read struct {
	Key       int
	Hops      Hops
	RequestID RequestID
	Critical  bool
	Seqno     int // highest seqno already seen by the client, -1 for none
}

// Write - a write or critical write travelling towards the database
type Write struct {
	Key       int
	Value     int
	Hops      Hops
	RequestID RequestID
	Critical  bool
}

// Response - an answer travelling back along the hop chain, also
// used for the database's write propagation
//
// a nil Values map signals an error
type Response struct {
	Key       int
	Values    map[int]int
	Hops      Hops
	RequestID RequestID
	Type      RequestType
	Seqno     int
}

// Timeout - self-addressed when an upward request has not been answered
type Timeout struct {
	Original Message
	Suspect  Address
}

// Crash - arm a one-shot crash point
type Crash struct {
	Point     CrashPoint
	RecoverIn time.Duration
}

// Recovery - self-addressed at the end of a crash
type Recovery struct{}

// Flush - discard all cached state
type Flush struct{}

// CriticalUpdate - 2PC prepare
type CriticalUpdate struct {
	Key       int
	Value     int
	RequestID RequestID
	Hops      Hops
}

// CriticalUpdateResponse - 2PC vote
type CriticalUpdateResponse struct {
	Vote      Vote
	RequestID RequestID
	Hops      Hops
}

// CriticalUpdateTimeout - self-addressed when votes are overdue
type CriticalUpdateTimeout struct {
	RequestID RequestID
	Hops      Hops
}

// CriticalWriteResponse - 2PC decision
type CriticalWriteResponse struct {
	Decision  Decision
	RequestID RequestID
	Hops      Hops
	Key       int
	Value     int
	Seqno     int
}

// Token - snapshot marker
type Token struct {
	SnapshotID int
}

// StartSnapshot - ask the database to begin a snapshot round
type StartSnapshot struct{}

// Name - message names as they appear in debug logs
func (JoinGroup) Name() string              { return "JoinGroup" }
func (Read) Name() string                   { return "Read" }
func (Write) Name() string                  { return "Write" }
func (Response) Name() string               { return "Response" }
func (Timeout) Name() string                { return "Timeout" }
func (Crash) Name() string                  { return "Crash" }
func (Recovery) Name() string               { return "Recovery" }
func (Flush) Name() string                  { return "Flush" }
func (CriticalUpdate) Name() string         { return "CriticalUpdate" }
func (CriticalUpdateResponse) Name() string { return "CriticalUpdateResponse" }
func (CriticalUpdateTimeout) Name() string  { return "CriticalUpdateTimeout" }
func (CriticalWriteResponse) Name() string  { return "CriticalWriteResponse" }
func (Token) Name() string                  { return "Token" }
func (StartSnapshot) Name() string          { return "StartSnapshot" }

// Type - the request type a read or write represents
func (r Read) Type() RequestType {
	if r.Critical {
		return TypeCritRead
	}
	return TypeRead
}

// Type - the request type a read or write represents
func (w Write) Type() RequestType {
	if w.Critical {
		return TypeCritWrite
	}
	return TypeWrite
}

// IsError - true for an error response
func (r Response) IsError() bool {
	return nil == r.Values
}

// Value - the value carried for the response key
func (r Response) Value() (int, bool) {
	if nil == r.Values {
		return 0, false
	}
	v, ok := r.Values[r.Key]
	return v, ok
}

// SingleValue - a values map holding one key
func SingleValue(key int, value int) map[int]int {
	return map[int]int{key: value}
}
