// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache maintains the partial key value map of a cache node
//
//  ***** Data Structure *****
//
//  Entries          Key               Value                   ExpiresAfter
//  |___ items       decimal key       Entry{Value, Seqno}     never
//
//  ***** Rules *****
//
//  Refresh:
//    result of a read, stores the entry unless a newer or equal
//    seqno is already held, the held entry is then returned instead
//
//  Update:
//    propagated write, applied only to a key already held and only
//    when the seqno is strictly newer
//
//  Flush:
//    discard everything, flushing an empty map changes nothing
package cache
