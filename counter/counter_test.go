// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package counter_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/distcache/counter"
)

// test incrementing a counter from several goroutines
func TestCounter(t *testing.T) {

	var c1 counter.Counter

	assert.True(t, c1.IsZero(), "counter is not zero at start")

	var wg sync.WaitGroup
	for i := 0; i < 5; i += 1 {
		wg.Add(1)
		go func() {
			for j := 0; j < 100; j += 1 {
				c1.Increment()
			}
			wg.Done()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(500), c1.Uint64(), "wrong count")
	assert.False(t, c1.IsZero(), "counter is zero")
}

func TestStats(t *testing.T) {
	var s counter.Stats

	assert.Equal(t, "", s.String(), "empty stats not blank")

	s.Received.Increment()
	s.Received.Increment()
	s.Crashes.Increment()

	assert.Equal(t, "received=2 crashes=1", s.String(), "wrong description")

	values := s.Values()
	assert.Equal(t, uint64(2), values["received"], "wrong received")
	assert.Equal(t, uint64(1), values["crashes"], "wrong crashes")
	assert.Equal(t, uint64(0), values["aborts"], "wrong aborts")
}
