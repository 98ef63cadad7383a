// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package simulator - assemble and drive a cache tree
//
// a Simulator owns the message bus, the database store and one
// background process per node, addresses are assigned as:
//
//   0                      database
//   1 .. L1                L1 caches
//   L1+1 .. L1+L1*L2       L2 caches, L2 per L1 in order
//   after the L2 caches    clients
//
// requests, crashes and snapshots enter the tree as messages from
// message.External
package simulator
