// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/bitmark-inc/distcache/background"
	"github.com/bitmark-inc/distcache/messagebus"
)

type process struct {
	node  Node
	queue <-chan messagebus.Message
}

// NewProcess - background process feeding a node from its queue
func NewProcess(n Node, queue <-chan messagebus.Message) background.Process {
	return &process{
		node:  n,
		queue: queue,
	}
}

func (p *process) Run(args interface{}, shutdown <-chan struct{}) {
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case m := <-p.queue:
			p.node.Receive(m.From, m.Item)
		}
	}
}
