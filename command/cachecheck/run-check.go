// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/distcache/checker"
)

func runCheck(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	file, err := checkFileName(c.String("file"), "file")
	if nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "checking: %s\n", file)
	}

	report, err := checkLog(m.w, file)
	if nil != err {
		return err
	}
	return report.Err()
}

// check one log and print the report
func checkLog(handle io.Writer, file string) (*checker.Report, error) {
	report, err := checker.CheckFile(file)
	if nil != err {
		return nil, err
	}
	fmt.Fprintf(handle, "%s", report)
	return report, nil
}
