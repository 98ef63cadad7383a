// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/bitmark-inc/distcache/fault"
)

// common errors - keep in alphabetic order
const (
	ErrFileDoesNotExist = fault.NotFoundError("file does not exist")
	ErrFileRemoved      = fault.ProcessError("file was removed")
)

// ErrRequiredOption - the named option was not given
type ErrRequiredOption string

func (e ErrRequiredOption) Error() string {
	return "option --" + string(e) + " is required"
}

func checkFileName(file string, option string) (string, error) {
	if "" == file {
		return "", ErrRequiredOption(option)
	}
	return file, nil
}
