// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/fault"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file
	defaultEventLog      = "events.log"

	defaultL1       = 2
	defaultL2       = 2
	defaultClients  = 3
	defaultKeys     = 10
	defaultMaxValue = 100

	defaultNetworkDelay       = 10   // milliseconds
	defaultParticipantTimeout = 600  // L1 waiting for votes
	defaultCoordinatorTimeout = 1000 // database waiting for votes
	defaultCacheTimeout       = 2000 // L2 waiting for its parent
	defaultClientTimeout      = 3000
	defaultClientRetries      = 1

	defaultRecoveryMin = 500
	defaultRecoveryMax = 1500

	defaultActions = 100
	defaultRate    = 20.0
	defaultBurst   = 1

	defaultLogDirectory = "log"
	defaultLogFile      = "cachesim.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	// hops on the longest request path: L2, L1, database and back
	roundTripHops = 4
)

// LoglevelMap - to hold log levels
type LoglevelMap map[string]string

// fresh map each time, the Lua mapping writes into it
func defaultLogLevels() LoglevelMap {
	return LoglevelMap{
		logger.DefaultTag: "critical",
	}
}

// TreeType - shape of the cache tree and the key space
type TreeType struct {
	L1       int `gluamapper:"l1" json:"l1"`
	L2       int `gluamapper:"l2" json:"l2"` // per L1
	Clients  int `gluamapper:"clients" json:"clients"`
	Keys     int `gluamapper:"keys" json:"keys"`
	MaxValue int `gluamapper:"max_value" json:"max_value"` // initial values are below this
}

// TimingType - delays and timeouts in milliseconds
type TimingType struct {
	NetworkDelay       int `gluamapper:"network_delay" json:"network_delay"`
	ParticipantTimeout int `gluamapper:"participant_timeout" json:"participant_timeout"`
	CoordinatorTimeout int `gluamapper:"coordinator_timeout" json:"coordinator_timeout"`
	CacheTimeout       int `gluamapper:"cache_timeout" json:"cache_timeout"`
	ClientTimeout      int `gluamapper:"client_timeout" json:"client_timeout"`
	ClientRetries      int `gluamapper:"client_retries" json:"client_retries"`
}

// CrashType - random crash injection
type CrashType struct {
	Probability float64 `gluamapper:"probability" json:"probability"` // chance that an action is a crash
	RecoveryMin int     `gluamapper:"recovery_min" json:"recovery_min"`
	RecoveryMax int     `gluamapper:"recovery_max" json:"recovery_max"`
}

// MixType - relative weights of the random client operations
type MixType struct {
	Read          int `gluamapper:"read" json:"read"`
	Write         int `gluamapper:"write" json:"write"`
	CriticalRead  int `gluamapper:"critical_read" json:"critical_read"`
	CriticalWrite int `gluamapper:"critical_write" json:"critical_write"`
}

// WorkloadType - pacing of the autonomous run
type WorkloadType struct {
	Actions  int     `gluamapper:"actions" json:"actions"`
	Rate     float64 `gluamapper:"rate" json:"rate"` // actions per second
	Burst    int     `gluamapper:"burst" json:"burst"`
	Snapshot int     `gluamapper:"snapshot" json:"snapshot"` // snapshot every n actions, 0 for none
	Mix      MixType `gluamapper:"mix" json:"mix"`
}

// Configuration - everything needed to run a simulation
type Configuration struct {
	DataDirectory string               `gluamapper:"data_directory" json:"data_directory"`
	EventLog      string               `gluamapper:"event_log" json:"event_log"`
	Seed          int64                `gluamapper:"seed" json:"seed"` // zero for a time based seed
	Tree          TreeType             `gluamapper:"tree" json:"tree"`
	Timing        TimingType           `gluamapper:"timing" json:"timing"`
	Crash         CrashType            `gluamapper:"crash" json:"crash"`
	Workload      WorkloadType         `gluamapper:"workload" json:"workload"`
	Logging       logger.Configuration `gluamapper:"logging" json:"logging"`
}

// Default - configuration with every default applied
func Default() *Configuration {
	return &Configuration{
		DataDirectory: defaultDataDirectory,
		EventLog:      defaultEventLog,

		Tree: TreeType{
			L1:       defaultL1,
			L2:       defaultL2,
			Clients:  defaultClients,
			Keys:     defaultKeys,
			MaxValue: defaultMaxValue,
		},

		Timing: TimingType{
			NetworkDelay:       defaultNetworkDelay,
			ParticipantTimeout: defaultParticipantTimeout,
			CoordinatorTimeout: defaultCoordinatorTimeout,
			CacheTimeout:       defaultCacheTimeout,
			ClientTimeout:      defaultClientTimeout,
			ClientRetries:      defaultClientRetries,
		},

		Crash: CrashType{
			Probability: 0,
			RecoveryMin: defaultRecoveryMin,
			RecoveryMax: defaultRecoveryMax,
		},

		Workload: WorkloadType{
			Actions: defaultActions,
			Rate:    defaultRate,
			Burst:   defaultBurst,
			Mix: MixType{
				Read:          6,
				Write:         2,
				CriticalRead:  1,
				CriticalWrite: 1,
			},
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels(),
		},
	}
}

// GetConfiguration - will read decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := Default()

	if err := ParseConfigurationFile(configurationFileName, options); err != nil {
		return nil, err
	}

	if err := options.Validate(); nil != err {
		return nil, err
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fault.ErrInvalidDataDirectory
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	}
	options.DataDirectory = filepath.Clean(options.DataDirectory)

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.EventLog,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = ensureAbsolute(options.DataDirectory, *f)
	}

	// fail if the log file is not a simple file name
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fault.ErrInvalidFileName
	}

	// create directories if they do not already exist
	for _, d := range []string{
		options.Logging.Directory,
		filepath.Dir(options.EventLog),
	} {
		if err := os.MkdirAll(d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}

// Validate - check the values that do not depend on the file system
func (c *Configuration) Validate() error {
	if c.Tree.L1 < 1 || c.Tree.L2 < 1 {
		return fault.ErrInvalidCacheCount
	}
	if c.Tree.Clients < 1 {
		return fault.ErrInvalidClientCount
	}
	if c.Tree.Keys < 1 || c.Tree.MaxValue < 1 {
		return fault.ErrInvalidKeyCount
	}

	t := c.Timing
	if t.NetworkDelay < 0 || t.ParticipantTimeout <= 0 || t.ClientRetries < 0 {
		return fault.ErrInvalidTimeout
	}
	// each waiting tier must outlast the tier it waits on
	if t.ParticipantTimeout >= t.CoordinatorTimeout ||
		t.CoordinatorTimeout >= t.CacheTimeout ||
		t.CacheTimeout >= t.ClientTimeout {
		return fault.ErrInvalidTimeout
	}
	if roundTripHops*t.NetworkDelay >= t.CacheTimeout {
		return fault.ErrUnreachableTimeout
	}

	if c.Crash.Probability < 0 || c.Crash.Probability > 1 {
		return fault.ErrInvalidProbability
	}
	if c.Crash.RecoveryMin < 0 || c.Crash.RecoveryMin > c.Crash.RecoveryMax {
		return fault.ErrInvalidRecoveryRange
	}

	w := c.Workload
	if w.Actions < 0 || w.Rate <= 0 || w.Burst < 1 || w.Snapshot < 0 {
		return fault.ErrInvalidWorkloadRate
	}
	m := w.Mix
	if m.Read < 0 || m.Write < 0 || m.CriticalRead < 0 || m.CriticalWrite < 0 ||
		0 == m.Read+m.Write+m.CriticalRead+m.CriticalWrite {
		return fault.ErrInvalidWorkloadMix
	}
	return nil
}

// Milliseconds - convert a configured millisecond count
func Milliseconds(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ensure the path is absolute
func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
