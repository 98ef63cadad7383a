// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package eventlog - the check log written by the nodes and replayed
// by the consistency checker
//
// One line per event, fields separated by tabs:
//
//   LEVEL  TIMESTAMP  SENDER  RECEIVER  TYPE  ISRESPONSE  KEY  VALUE  SEQNO  REQUESTID  TEXT
//
// absent optional fields are written as "null". The first two lines of
// a log describe the run:
//
//   CONFIG  <L1 count>  <L2 count>  <client count>
//   CONFIG  <key>-<value>  <key>-<value>  ...
//
// A completed snapshot is an event of type SNAPSHOT whose TEXT is the
// JSON encoded SnapshotRecord.
package eventlog
