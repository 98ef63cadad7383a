// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised   = ExistsError("already initialised")
	ErrAlreadyRegistered    = ExistsError("address is already registered")
	ErrCheckerInconsistent  = ProcessError("event log is not consistent")
	ErrClientBusy           = ProcessError("client has a request outstanding")
	ErrClientTimeout        = ProcessError("client retries exhausted")
	ErrEmptyEventLog        = InvalidError("event log is empty")
	ErrInvalidAddress       = InvalidError("invalid address")
	ErrInvalidCacheCount    = InvalidError("invalid cache count")
	ErrInvalidClientCount   = InvalidError("invalid client count")
	ErrInvalidConfiguration = InvalidError("configuration must return a table")
	ErrInvalidCrashPoint    = InvalidError("invalid crash point")
	ErrInvalidDataDirectory = InvalidError("invalid data directory")
	ErrInvalidEventLine     = InvalidError("invalid event log line")
	ErrInvalidFileName      = InvalidError("file name must not contain a directory")
	ErrInvalidKeyCount      = InvalidError("invalid key count")
	ErrInvalidLoggerChannel = InvalidError("invalid logger channel")
	ErrInvalidProbability   = InvalidError("probability must be between 0 and 1")
	ErrInvalidRecoveryRange = InvalidError("invalid recovery range")
	ErrInvalidRequestType   = InvalidError("invalid request type")
	ErrInvalidTimeout       = InvalidError("invalid timeout")
	ErrInvalidWorkloadMix   = InvalidError("invalid workload mix")
	ErrInvalidWorkloadRate  = InvalidError("invalid workload rate")
	ErrKeyNotFound          = NotFoundError("key not found")
	ErrMissingDatabaseLine  = InvalidError("missing database line in event log")
	ErrNoCacheAvailable     = NotFoundError("no cache available")
	ErrNotInitialised       = NotFoundError("not initialised")
	ErrQueueClosed          = ProcessError("queue is closed")
	ErrRequestFailed        = ProcessError("request failed")
	ErrSimulatorNotStarted  = ProcessError("simulator is not started")
	ErrUnknownAddress       = NotFoundError("unknown address")
	ErrUnknownClient        = NotFoundError("unknown client")
	ErrUnreachableTimeout   = InvalidError("timeout shorter than the network round trip")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool   { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool  { _, ok := e.(InvalidError); return ok }
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool  { _, ok := e.(ProcessError); return ok }
