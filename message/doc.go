// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package message - the protocol exchanged between the database,
// the cache tiers and the clients
//
// Every message is an immutable value: slices and maps are copied
// when a message is built, so a message can be handed to another
// node without sharing state.
//
//  Read/Write           client → L2 → L1 → database (hops grow)
//  Response             database → L1 → L2 → client (hops shrink)
//  CriticalUpdate       database → L1 → L2 (2PC prepare)
//  CriticalUpdateResponse  L2 → L1 → database (vote)
//  CriticalWriteResponse   database → L1 → L2 (decision)
//  Token                   between tree neighbours (snapshot)
package message
