// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"fmt"
	"strings"
)

// Stage - when, relative to an operation, a crash fires
type Stage int

// all stages, Doing only applies to multicasts
const (
	Before Stage = iota
	Doing
	After
)

func (s Stage) String() string {
	switch s {
	case Before:
		return "BEFORE"
	case Doing:
		return "DOING"
	case After:
		return "AFTER"
	default:
		return "*Unknown*"
	}
}

// Operation - processing step that can carry a crash point
type Operation int

// operations
const (
	OnRead Operation = iota
	OnWrite
	OnCritRead
	OnCritWrite
	OnResponse
	OnCriticalUpdateMulticast
	OnCommitMulticast
	OnAbortMulticast
	OnWriteValueMulticast
	OnFlushMulticast
	maximumOperation
)

var operationNames = [...]string{
	OnRead:                    "READ",
	OnWrite:                   "WRITE",
	OnCritRead:                "CRITREAD",
	OnCritWrite:               "CRITWRITE",
	OnResponse:                "RESPONSE",
	OnCriticalUpdateMulticast: "CRITICALUPDATE_MULTICAST",
	OnCommitMulticast:         "COMMIT_MULTICAST",
	OnAbortMulticast:          "ABORT_MULTICAST",
	OnWriteValueMulticast:     "WRITEVALUE_MULTICAST",
	OnFlushMulticast:          "FLUSH_MULTICAST",
}

func (o Operation) String() string {
	if o < 0 || o >= maximumOperation {
		return "*Unknown*"
	}
	return operationNames[o]
}

// IsMulticast - true for the L1 multicast operations
func (o Operation) IsMulticast() bool {
	return o >= OnCriticalUpdateMulticast && o < maximumOperation
}

// OperationFor - the crash operation that guards a request
func OperationFor(t RequestType) Operation {
	switch t {
	case TypeWrite:
		return OnWrite
	case TypeCritRead:
		return OnCritRead
	case TypeCritWrite:
		return OnCritWrite
	default:
		return OnRead
	}
}

// CrashPoint - a named place in cache processing where a crash can be
// injected, the zero value is no crash
type CrashPoint struct {
	Tier      int // 1 or 2
	Stage     Stage
	Operation Operation
}

// NoCrash - disarmed crash point
var NoCrash = CrashPoint{}

// IsNone - true when no crash is armed
func (p CrashPoint) IsNone() bool {
	return 0 == p.Tier
}

// Valid - check the combination exists
//
// multicast crash points only exist at L1 and are the only ones with
// a Doing stage
func (p CrashPoint) Valid() bool {
	if p.Operation < 0 || p.Operation >= maximumOperation {
		return false
	}
	switch p.Tier {
	case 1:
		if p.Operation.IsMulticast() {
			return p.Stage >= Before && p.Stage <= After
		}
	case 2:
		if p.Operation.IsMulticast() {
			return false
		}
	default:
		return false
	}
	return Before == p.Stage || After == p.Stage
}

func (p CrashPoint) String() string {
	if p.IsNone() {
		return "NONE"
	}
	return fmt.Sprintf("L%d_%s_%s", p.Tier, p.Stage, p.Operation)
}

// AllCrashPoints - every valid crash point
func AllCrashPoints() []CrashPoint {
	points := make([]CrashPoint, 0, 35)
	for tier := 1; tier <= 2; tier += 1 {
		for op := OnRead; op < maximumOperation; op += 1 {
			for stage := Before; stage <= After; stage += 1 {
				p := CrashPoint{Tier: tier, Stage: stage, Operation: op}
				if p.Valid() {
					points = append(points, p)
				}
			}
		}
	}
	return points
}

// CrashPointsForTier - the valid crash points of one tier
func CrashPointsForTier(tier int) []CrashPoint {
	points := make([]CrashPoint, 0, 25)
	for _, p := range AllCrashPoints() {
		if tier == p.Tier {
			points = append(points, p)
		}
	}
	return points
}

// ParseCrashPoint - inverse of String, case insensitive
func ParseCrashPoint(s string) (CrashPoint, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if "NONE" == s {
		return NoCrash, true
	}
	for _, p := range AllCrashPoints() {
		if p.String() == s {
			return p, true
		}
	}
	return NoCrash, false
}
