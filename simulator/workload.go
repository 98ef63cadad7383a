// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/bitmark-inc/logger"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/distcache/configuration"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/message"
)

// Result - what a workload run did
type Result struct {
	Actions   int
	Requests  int
	Crashes   int
	Snapshots int
	Skipped   int // every client was busy
}

// Workload - random client operations and crashes at a fixed rate
type Workload struct {
	log      *logger.L
	sim      *Simulator
	conf     configuration.WorkloadType
	crash    configuration.CrashType
	keys     int
	maxValue int
	limiter  *rate.Limiter
	random   *rand.Rand
}

// NewWorkload - a workload over a simulator, paced by its configuration
func NewWorkload(sim *Simulator) *Workload {
	conf := sim.conf
	return &Workload{
		log:      logger.New("workload"),
		sim:      sim,
		conf:     conf.Workload,
		crash:    conf.Crash,
		keys:     conf.Tree.Keys,
		maxValue: conf.Tree.MaxValue,
		limiter:  rate.NewLimiter(rate.Limit(conf.Workload.Rate), conf.Workload.Burst),
		random:   rand.New(rand.NewSource(sim.params.Seed + 1)),
	}
}

// Run - perform the configured number of actions then wait for the
// clients to finish
func (w *Workload) Run(ctx context.Context) (Result, error) {
	result := Result{}
	w.log.Infof("run: actions: %d rate: %.1f/s", w.conf.Actions, w.conf.Rate)

	for i := 1; i <= w.conf.Actions; i += 1 {
		if err := w.limiter.Wait(ctx); nil != err {
			return result, err
		}
		result.Actions += 1

		if err := w.action(&result); nil != err {
			return result, err
		}

		if w.conf.Snapshot > 0 && 0 == i%w.conf.Snapshot {
			if err := w.sim.Snapshot(); nil != err {
				return result, err
			}
			result.Snapshots += 1
		}
	}

	err := w.sim.WaitIdle(ctx)
	w.log.Infof("run: finished: %+v", result)
	return result, err
}

// one random crash or client request
func (w *Workload) action(result *Result) error {
	if w.random.Float64() < w.crash.Probability {
		result.Crashes += 1
		return w.randomCrash()
	}

	client, ok := w.idleClient()
	if !ok {
		result.Skipped += 1
		return nil
	}

	item := w.randomRequest()
	w.log.Debugf("action: client: %d %s", client, item.Name())
	err := w.sim.Submit(client, item)
	if fault.ErrClientBusy == err {
		result.Skipped += 1
		return nil
	}
	if nil == err {
		result.Requests += 1
	}
	return err
}

func (w *Workload) randomCrash() error {
	caches := w.sim.Caches()
	cache := caches[w.random.Intn(len(caches))]
	points := message.CrashPointsForTier(w.sim.tierOf(cache))
	point := points[w.random.Intn(len(points))]

	span := w.crash.RecoveryMax - w.crash.RecoveryMin
	recoverIn := w.crash.RecoveryMin
	if span > 0 {
		recoverIn += w.random.Intn(span + 1)
	}
	return w.sim.Crash(cache, point, configuration.Milliseconds(recoverIn))
}

func (w *Workload) idleClient() (message.Address, bool) {
	w.sim.Lock()
	idle := make([]message.Address, 0, len(w.sim.clients))
	for _, c := range w.sim.clients {
		if !w.sim.busy[c.Address()] {
			idle = append(idle, c.Address())
		}
	}
	w.sim.Unlock()

	if 0 == len(idle) {
		return 0, false
	}
	return idle[w.random.Intn(len(idle))], true
}

// request type chosen by the mix weights
func (w *Workload) randomRequest() message.Message {
	m := w.conf.Mix
	key := w.random.Intn(w.keys)
	value := w.random.Intn(w.maxValue)

	n := w.random.Intn(m.Read + m.Write + m.CriticalRead + m.CriticalWrite)
	switch {
	case n < m.Read:
		return message.Read{Key: key}
	case n < m.Read+m.Write:
		return message.Write{Key: key, Value: value}
	case n < m.Read+m.Write+m.CriticalRead:
		return message.Read{Key: key, Critical: true}
	default:
		return message.Write{Key: key, Value: value, Critical: true}
	}
}

// DrainTimeout - long enough for every timer a request can start
func (w *Workload) DrainTimeout() time.Duration {
	t := w.sim.conf.Timing
	return configuration.Milliseconds((t.ClientRetries+1)*t.ClientTimeout + t.CoordinatorTimeout)
}
