// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package checker

import (
	"fmt"
	"strings"

	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

// Problem - one inconsistency found in a log
type Problem struct {
	Event     int // index into the log events
	RequestID message.RequestID
	Reason    string
}

func (p Problem) String() string {
	return fmt.Sprintf("event: %d  request: %s  %s", p.Event, p.RequestID, p.Reason)
}

// Report - outcome of checking one log
type Report struct {
	Consistent     bool
	Responses      int // final responses to clients
	Errors         int // final responses without a value
	ExpectedErrors int // errors explained by a critical write or an unknown key
	Commits        int
	Snapshots      int
	Problems       []Problem
}

// Err - nil for a consistent log
func (r *Report) Err() error {
	if r.Consistent {
		return nil
	}
	return fault.ErrCheckerInconsistent
}

func (r *Report) String() string {
	b := strings.Builder{}
	if r.Consistent {
		b.WriteString("CONSISTENT")
	} else {
		b.WriteString("NOT CONSISTENT")
	}
	fmt.Fprintf(&b, "  responses: %d  errors: %d  expected errors: %d  commits: %d  snapshots: %d\n",
		r.Responses, r.Errors, r.ExpectedErrors, r.Commits, r.Snapshots)
	for _, p := range r.Problems {
		b.WriteString(p.String())
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Report) problem(event int, id message.RequestID, format string, arguments ...interface{}) {
	r.Problems = append(r.Problems, Problem{
		Event:     event,
		RequestID: id,
		Reason:    fmt.Sprintf(format, arguments...),
	})
}
