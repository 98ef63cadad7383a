// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node - the database, cache and client state machines
//
// Every node processes one message at a time through Receive and
// never blocks waiting for a reply: anything that must happen later
// is a self-addressed message sent through the transport after a
// delay. Nodes share no state, all interaction is by message.
//
// Routing uses the hop chain carried by requests: a node forwarding a
// request upwards appends its own address and a node answering sends
// the response to the last address in the chain with that address
// removed.
package node
