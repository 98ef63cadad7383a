// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/background"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/message"
	"github.com/bitmark-inc/distcache/messagebus"
	"github.com/bitmark-inc/distcache/node"
	"github.com/bitmark-inc/distcache/storage"
)

func TestProcessFeedsNode(t *testing.T) {
	store, err := storage.New(map[int]int{1: 10})
	assert.Nil(t, err, "storage error")
	defer store.Close()

	bus := messagebus.New()
	defer bus.Close()

	queue, err := bus.Register(message.Database)
	assert.Nil(t, err, "register error")

	sink := eventlog.NewMemory()
	db := node.NewDatabase(store, bus, sink, testParameters)
	bg := background.Start(background.Processes{node.NewProcess(db, queue)}, nil)

	assert.Nil(t, bus.Send(message.External, message.Database, message.JoinGroup{}), "send error")
	assert.Nil(t, bus.Send(message.External, message.Database, message.Write{
		Key:       1,
		Value:     11,
		Hops:      message.Hops{message.External},
		RequestID: "w-1",
	}), "send error")

	deadline := time.Now().Add(2 * time.Second)
	for {
		value, _, _ := db.Get(1)
		if 11 == value || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	bg.Stop()

	value, seqno, _ := db.Get(1)
	assert.Equal(t, 11, value, "write not processed")
	assert.Equal(t, 1, seqno, "wrong seqno")
	assert.Equal(t, 1, len(sink.Events(func(e eventlog.Event) bool { return e.IsCommit() })), "commit not logged")
}
