// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/distcache/fault"
)

// table prefixes
const (
	valuePrefix = 'V'
	seqnoPrefix = 'S'
)

// Store - committed values and their sequence numbers
type Store struct {
	sync.RWMutex
	db *leveldb.DB
}

// reader - common part of a database and a database snapshot
type reader interface {
	Get(key []byte, ro *ldb_opt.ReadOptions) ([]byte, error)
	NewIterator(slice *ldb_util.Range, ro *ldb_opt.ReadOptions) iterator.Iterator
}

// New - open an in-memory store holding the initial contents at seqno 0
func New(initial map[int]int) (*Store, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if nil != err {
		return nil, err
	}

	batch := new(leveldb.Batch)
	for key, value := range initial {
		batch.Put(prefixKey(valuePrefix, key), encode(value))
		batch.Put(prefixKey(seqnoPrefix, key), encode(0))
	}
	err = db.Write(batch, nil)
	if nil != err {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close - release the database
func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()

	if nil == s.db {
		return fault.ErrNotInitialised
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get - read the committed value and seqno of a key
//
// an absent key reads as value 0 and seqno 0 with found false
func (s *Store) Get(key int) (int, int, bool, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.db {
		return 0, 0, false, fault.ErrNotInitialised
	}
	return get(s.db, key)
}

// Commit - store a new value and increment its seqno
//
// returns the new seqno
func (s *Store) Commit(key int, value int) (int, error) {
	s.Lock()
	defer s.Unlock()

	if nil == s.db {
		return 0, fault.ErrNotInitialised
	}

	_, seqno, _, err := get(s.db, key)
	if nil != err {
		return 0, err
	}
	seqno += 1

	batch := new(leveldb.Batch)
	batch.Put(prefixKey(valuePrefix, key), encode(value))
	batch.Put(prefixKey(seqnoPrefix, key), encode(seqno))
	err = s.db.Write(batch, nil)
	if nil != err {
		return 0, err
	}
	return seqno, nil
}

// Contents - every committed value and seqno
func (s *Store) Contents() (map[int]int, map[int]int, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.db {
		return nil, nil, fault.ErrNotInitialised
	}
	return contents(s.db)
}

// Keys - all stored keys in ascending order
func (s *Store) Keys() ([]int, error) {
	values, _, err := s.Contents()
	if nil != err {
		return nil, err
	}
	keys := make([]int, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys, nil
}

// Frozen - an immutable view of the store
type Frozen struct {
	snapshot *leveldb.Snapshot
}

// Freeze - take a consistent view that later commits do not change
//
// the caller must Release the view
func (s *Store) Freeze() (*Frozen, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.db {
		return nil, fault.ErrNotInitialised
	}
	snapshot, err := s.db.GetSnapshot()
	if nil != err {
		return nil, err
	}
	return &Frozen{snapshot: snapshot}, nil
}

// Get - read one key from the frozen view
func (f *Frozen) Get(key int) (int, int, bool, error) {
	return get(f.snapshot, key)
}

// Contents - every value and seqno in the frozen view
func (f *Frozen) Contents() (map[int]int, map[int]int, error) {
	return contents(f.snapshot)
}

// Release - discard the view
func (f *Frozen) Release() {
	f.snapshot.Release()
}

func get(r reader, key int) (int, int, bool, error) {
	value, err := r.Get(prefixKey(valuePrefix, key), nil)
	if leveldb.ErrNotFound == err {
		return 0, 0, false, nil
	}
	if nil != err {
		return 0, 0, false, err
	}
	seqno, err := r.Get(prefixKey(seqnoPrefix, key), nil)
	if nil != err {
		return 0, 0, false, err
	}
	return decode(value), decode(seqno), true, nil
}

func contents(r reader) (map[int]int, map[int]int, error) {
	values, err := table(r, valuePrefix)
	if nil != err {
		return nil, nil, err
	}
	seqnos, err := table(r, seqnoPrefix)
	if nil != err {
		return nil, nil, err
	}
	return values, seqnos, nil
}

func table(r reader, prefix byte) (map[int]int, error) {
	result := make(map[int]int)
	iter := r.NewIterator(ldb_util.BytesPrefix([]byte{prefix}), nil)
	for iter.Next() {
		k := iter.Key()
		result[decode(k[1:])] = decode(iter.Value())
	}
	err := iter.Error()
	iter.Release()
	return result, err
}

// prepend the prefix onto the key
func prefixKey(prefix byte, key int) []byte {
	prefixedKey := make([]byte, 9)
	prefixedKey[0] = prefix
	binary.BigEndian.PutUint64(prefixedKey[1:], uint64(int64(key)))
	return prefixedKey
}

func encode(n int) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, uint64(int64(n)))
	return buffer
}

func decode(buffer []byte) int {
	return int(int64(binary.BigEndian.Uint64(buffer)))
}
