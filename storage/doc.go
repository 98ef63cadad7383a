// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - the authoritative key value store of the database node
//
// This maintains an in-memory LevelDB database split into two tables.
// Each table is defined by a prefix byte.
//
// Notes:
// 1. ++    = concatenation of byte data
// 2. key   = big endian int64 (8 bytes)
// 3. value = big endian int64 (8 bytes)
// 4. seqno = big endian int64 (8 bytes)
//
// Values:
//
//   V ++ key                   - current committed value
//                                data: value
//
// Sequence numbers:
//
//   S ++ key                   - number of committed writes
//                                data: seqno
//
// A value and its seqno are always written in the same batch.
package storage
