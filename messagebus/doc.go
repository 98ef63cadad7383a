// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messagebus - a queuing system delivering protocol messages
// between the nodes of a simulation
//
// each registered address owns one FIFO queue, so messages between a
// fixed pair of nodes are delivered in the order they were sent
package messagebus
