// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

// field count of an event line
const eventFields = 11

// ReadFile - parse a complete log file
func ReadFile(filename string) (*Log, error) {
	f, err := os.Open(filename)
	if nil != err {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse - read a complete log
func Parse(r io.Reader) (*Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	l := &Log{}
	n := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		n += 1
		if "" == strings.TrimSpace(line) {
			continue
		}
		fields := strings.Split(line, "\t")

		switch {
		case nil == l.Database && string(Config) == fields[0] && n == 1:
			if err := parseConfiguration(l, fields); nil != err {
				return nil, lineError(n, err)
			}

		case nil == l.Database && string(Config) == fields[0]:
			database, err := parseDatabase(fields)
			if nil != err {
				return nil, lineError(n, err)
			}
			l.Database = database

		default:
			if nil == l.Database {
				return nil, fault.ErrMissingDatabaseLine
			}
			e, err := ParseEvent(line)
			if nil != err {
				return nil, lineError(n, err)
			}
			if message.TypeSnapshot == e.Type {
				var record SnapshotRecord
				if err := json.Unmarshal([]byte(e.Text), &record); nil != err {
					return nil, lineError(n, err)
				}
				l.Snapshots = append(l.Snapshots, record)
			}
			l.Events = append(l.Events, e)
		}
	}
	if err := scanner.Err(); nil != err {
		return nil, err
	}
	if 0 == n {
		return nil, fault.ErrEmptyEventLog
	}
	if nil == l.Database {
		return nil, fault.ErrMissingDatabaseLine
	}
	return l, nil
}

// ParseEvent - inverse of FormatEvent
func ParseEvent(line string) (Event, error) {
	fields := strings.SplitN(line, "\t", eventFields)
	if eventFields != len(fields) {
		return Event{}, fault.ErrInvalidEventLine
	}

	t, err := time.ParseInLocation(TimeFormat, fields[1], time.Local)
	if nil != err {
		return Event{}, err
	}
	sender, err := strconv.Atoi(fields[2])
	if nil != err {
		return Event{}, err
	}
	receiver, err := strconv.Atoi(fields[3])
	if nil != err {
		return Event{}, err
	}
	requestType, ok := message.ParseRequestType(fields[4])
	if !ok {
		return Event{}, fault.ErrInvalidRequestType
	}
	isResponse, err := strconv.ParseBool(fields[5])
	if nil != err {
		return Event{}, err
	}
	key, err := ParseOptional(fields[6])
	if nil != err {
		return Event{}, err
	}
	value, err := ParseOptional(fields[7])
	if nil != err {
		return Event{}, err
	}
	seqno, err := ParseOptional(fields[8])
	if nil != err {
		return Event{}, err
	}
	requestID := message.NoRequest
	if null != fields[9] {
		requestID = message.RequestID(fields[9])
	}

	return Event{
		Level:      Level(fields[0]),
		Time:       t,
		Sender:     message.Address(sender),
		Receiver:   message.Address(receiver),
		Type:       requestType,
		IsResponse: isResponse,
		Key:        key,
		Value:      value,
		Seqno:      seqno,
		RequestID:  requestID,
		Text:       fields[10],
	}, nil
}

func parseConfiguration(l *Log, fields []string) error {
	if 4 != len(fields) {
		return fault.ErrInvalidEventLine
	}
	counts := make([]int, 3)
	for i := range counts {
		n, err := strconv.Atoi(fields[i+1])
		if nil != err {
			return err
		}
		counts[i] = n
	}
	l.L1, l.L2, l.Clients = counts[0], counts[1], counts[2]
	return nil
}

func parseDatabase(fields []string) (map[int]int, error) {
	database := make(map[int]int, len(fields)-1)
	for _, pair := range fields[1:] {
		// separator search skips a leading minus sign of the key
		if len(pair) < 3 {
			return nil, fault.ErrInvalidEventLine
		}
		i := strings.Index(pair[1:], "-") + 1
		if i <= 0 {
			return nil, fault.ErrInvalidEventLine
		}
		k, err := strconv.Atoi(pair[:i])
		if nil != err {
			return nil, err
		}
		v, err := strconv.Atoi(pair[i+1:])
		if nil != err {
			return nil, err
		}
		database[k] = v
	}
	return database, nil
}

func lineError(n int, err error) error {
	return fmt.Errorf("line %d: %s", n, err)
}
