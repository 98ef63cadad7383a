// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventlog

import (
	"strconv"
	"time"

	"github.com/bitmark-inc/distcache/message"
)

// Level - severity of an event
type Level string

// levels used in the log
const (
	Info    Level = "INFO"
	Warning Level = "WARNING"
	Severe  Level = "SEVERE"
	Config  Level = "CONFIG"
)

// TimeFormat - layout of the timestamp field
const TimeFormat = "20060102_150405.000"

// null field
const null = "null"

// Optional - an integer field that may be absent
type Optional struct {
	Value int
	Set   bool
}

// None - the absent value
var None = Optional{}

// Some - a present value
func Some(v int) Optional {
	return Optional{Value: v, Set: true}
}

func (o Optional) String() string {
	if !o.Set {
		return null
	}
	return strconv.Itoa(o.Value)
}

// ParseOptional - inverse of String
func ParseOptional(s string) (Optional, error) {
	if null == s {
		return None, nil
	}
	v, err := strconv.Atoi(s)
	if nil != err {
		return None, err
	}
	return Some(v), nil
}

// Event - one protocol significant step
type Event struct {
	Level      Level
	Time       time.Time
	Sender     message.Address
	Receiver   message.Address
	Type       message.RequestType
	IsResponse bool
	Key        Optional
	Value      Optional
	Seqno      Optional
	RequestID  message.RequestID
	Text       string
}

// IsCommit - database commit or abort record
func (e Event) IsCommit() bool {
	return message.Database == e.Sender && message.Database == e.Receiver &&
		message.TypeSnapshot != e.Type && message.TypeFlush != e.Type
}

// SnapshotRecord - the state captured by one node in one snapshot round
type SnapshotRecord struct {
	Node            message.Address `json:"node"`
	SnapshotID      int             `json:"snapshot_id"`
	Values          map[int]int     `json:"values"`
	Seqnos          map[int]int     `json:"seqnos"`
	InTransit       map[int]int     `json:"in_transit"`
	SeqnosInTransit map[int]int     `json:"seqnos_in_transit"`
}

// Sink - receiver of log events
//
// implementations must be safe for concurrent use
type Sink interface {
	Configuration(l1 int, l2 int, clients int)
	Database(values map[int]int)
	Record(e Event)
	Snapshot(r SnapshotRecord)
}

// Log - the complete contents of a run
type Log struct {
	L1        int
	L2        int
	Clients   int
	Database  map[int]int
	Events    []Event
	Snapshots []SnapshotRecord
}
