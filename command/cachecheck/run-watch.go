// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
)

// quiet period after the last write before a log is checked again
const defaultSettle = 500 * time.Millisecond

func runWatch(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	file, err := checkFileName(c.String("file"), "file")
	if nil != err {
		return err
	}

	settle := c.Duration("settle")
	if settle <= 0 {
		settle = defaultSettle
	}

	w, err := newFileWatcher(file, m.log)
	if nil != err {
		return err
	}
	if err := w.Start(); nil != err {
		return err
	}
	defer w.Stop()

	if m.verbose {
		fmt.Fprintf(m.e, "watching: %s\n", w.filePath)
	}

	// a log still being written may not parse, wait for a complete one
	if _, err := checkLog(m.w, w.filePath); nil != err {
		fmt.Fprintf(m.e, "check error: %s\n", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case sig := <-ch:
			m.log.Infof("received signal: %v", sig)
			return nil

		case <-w.remove:
			return ErrFileRemoved

		case <-w.change:
			timer.Reset(settle)

		case <-timer.C:
			m.log.Infof("checking: %s", w.filePath)
			if _, err := checkLog(m.w, w.filePath); nil != err {
				fmt.Fprintf(m.e, "check error: %s\n", err)
			}
		}
	}
}
