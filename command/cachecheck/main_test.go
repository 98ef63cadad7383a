// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

const (
	testingDirName = "testing"
)

func TestMain(m *testing.M) {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	_ = logger.Initialise(logging)

	rc := m.Run()

	logger.Finalise()
	removeFiles()
	os.Exit(rc)
}

func removeFiles() {
	os.RemoveAll(testingDirName)
}

// a log with one write and one read, value is what the read returns
func writeLog(t *testing.T, filename string, value int) {
	w, err := eventlog.Create(filename)
	if nil != err {
		t.Fatalf("create error: %s", err)
	}
	defer w.Close()

	w.Configuration(1, 1, 1)
	w.Database(map[int]int{1: 10})

	w.Record(eventlog.Event{Level: eventlog.Info, Sender: 3, Receiver: 2, Type: message.TypeWrite, Key: eventlog.Some(1), Value: eventlog.Some(20), RequestID: "w"})
	w.Record(eventlog.Event{Level: eventlog.Info, Sender: 0, Receiver: 0, Type: message.TypeWrite, Key: eventlog.Some(1), Value: eventlog.Some(20), Seqno: eventlog.Some(1), RequestID: "w", Text: "commit"})
	w.Record(eventlog.Event{Level: eventlog.Info, Sender: 2, Receiver: 3, Type: message.TypeWrite, IsResponse: true, Key: eventlog.Some(1), Value: eventlog.Some(20), Seqno: eventlog.Some(1), RequestID: "w"})
	w.Record(eventlog.Event{Level: eventlog.Info, Sender: 3, Receiver: 2, Type: message.TypeRead, Key: eventlog.Some(1), RequestID: "r"})
	w.Record(eventlog.Event{Level: eventlog.Info, Sender: 2, Receiver: 3, Type: message.TypeRead, IsResponse: true, Key: eventlog.Some(1), Value: eventlog.Some(value), Seqno: eventlog.Some(1), RequestID: "r"})
}

func TestCheckLog(t *testing.T) {
	filename := filepath.Join(testingDirName, "good.log")
	writeLog(t, filename, 20)

	buffer := &bytes.Buffer{}
	report, err := checkLog(buffer, filename)
	assert.Nil(t, err, "check error")
	assert.True(t, report.Consistent, "inconsistent: %s", report)
	assert.Contains(t, buffer.String(), "CONSISTENT", "report not printed")
}

func TestCheckLogInconsistent(t *testing.T) {
	filename := filepath.Join(testingDirName, "bad.log")
	writeLog(t, filename, 30)

	buffer := &bytes.Buffer{}
	report, err := checkLog(buffer, filename)
	assert.Nil(t, err, "check error")
	assert.False(t, report.Consistent, "wrong read accepted")
	assert.Equal(t, fault.ErrCheckerInconsistent, report.Err(), "wrong error")
	assert.Contains(t, buffer.String(), "NOT CONSISTENT", "report not printed")
}

func TestCheckFileName(t *testing.T) {
	_, err := checkFileName("", "file")
	assert.Equal(t, ErrRequiredOption("file"), err, "missing option accepted")
	assert.Equal(t, "option --file is required", err.Error(), "wrong message")

	file, err := checkFileName("x.log", "file")
	assert.Nil(t, err, "name rejected")
	assert.Equal(t, "x.log", file, "wrong name")
}

func TestWatcherMissingFile(t *testing.T) {
	_, err := newFileWatcher(filepath.Join(testingDirName, "missing.log"), logger.New("test"))
	assert.Equal(t, ErrFileDoesNotExist, err, "missing file accepted")
}

func TestWatcherSignalsChangeAndRemove(t *testing.T) {
	filename := filepath.Join(testingDirName, "watched.log")
	err := ioutil.WriteFile(filename, []byte("start\n"), 0600)
	assert.Nil(t, err, "write error")

	w, err := newFileWatcher(filename, logger.New("test"))
	if !assert.Nil(t, err, "watcher error") {
		return
	}
	assert.Nil(t, w.Start(), "start error")
	defer w.Stop()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_WRONLY, 0600)
	assert.Nil(t, err, "open error")
	_, err = f.WriteString("more\n")
	assert.Nil(t, err, "append error")
	f.Close()

	select {
	case <-w.change:
	case <-time.After(2 * time.Second):
		t.Fatal("no change event")
	}

	err = os.Remove(filename)
	assert.Nil(t, err, "remove error")

	select {
	case <-w.remove:
	case <-time.After(2 * time.Second):
		t.Fatal("no remove event")
	}
}
