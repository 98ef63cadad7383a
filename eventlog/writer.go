// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/distcache/message"
)

// Writer - sink writing the line format to a stream
type Writer struct {
	sync.Mutex
	w      io.Writer
	closer io.Closer
	err    error
	now    func() time.Time
}

// NewWriter - write lines to an existing stream
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   w,
		now: time.Now,
	}
}

// Create - truncate or create a log file
func Create(filename string) (*Writer, error) {
	f, err := os.Create(filename)
	if nil != err {
		return nil, err
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Err - first write error, if any
func (w *Writer) Err() error {
	w.Lock()
	defer w.Unlock()
	return w.err
}

// Close - close the underlying file, when opened by Create
func (w *Writer) Close() error {
	w.Lock()
	defer w.Unlock()
	if nil == w.closer {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// Configuration - first line of a log
func (w *Writer) Configuration(l1 int, l2 int, clients int) {
	w.line(fmt.Sprintf("%s\t%d\t%d\t%d", Config, l1, l2, clients))
}

// Database - second line of a log
func (w *Writer) Database(values map[int]int) {
	keys := make([]int, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var b strings.Builder
	b.WriteString(string(Config))
	for _, k := range keys {
		fmt.Fprintf(&b, "\t%d-%d", k, values[k])
	}
	w.line(b.String())
}

// Record - write one event
func (w *Writer) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = w.now()
	}
	w.line(FormatEvent(e))
}

// Snapshot - write a snapshot record as a SNAPSHOT event
func (w *Writer) Snapshot(r SnapshotRecord) {
	e, err := SnapshotEvent(r)
	if nil != err {
		w.Lock()
		if nil == w.err {
			w.err = err
		}
		w.Unlock()
		return
	}
	w.Record(e)
}

func (w *Writer) line(s string) {
	w.Lock()
	defer w.Unlock()
	if nil != w.err {
		return
	}
	_, w.err = io.WriteString(w.w, s+"\n")
}

// SnapshotEvent - convert a snapshot record to its event form
func SnapshotEvent(r SnapshotRecord) (Event, error) {
	buffer, err := json.Marshal(r)
	if nil != err {
		return Event{}, err
	}
	return Event{
		Level:     Info,
		Sender:    r.Node,
		Receiver:  r.Node,
		Type:      message.TypeSnapshot,
		RequestID: message.NoRequest,
		Text:      string(buffer),
	}, nil
}

// FormatEvent - render an event as one line without the newline
func FormatEvent(e Event) string {
	fields := []string{
		string(e.Level),
		e.Time.Format(TimeFormat),
		e.Sender.String(),
		e.Receiver.String(),
		e.Type.String(),
		strconv.FormatBool(e.IsResponse),
		e.Key.String(),
		e.Value.String(),
		e.Seqno.String(),
		e.RequestID.String(),
		sanitise(e.Text),
	}
	return strings.Join(fields, "\t")
}

// free text must stay on one line in one field
func sanitise(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return ' '
		}
		return r
	}, s)
}
