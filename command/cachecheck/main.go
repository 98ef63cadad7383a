// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"
)

type metadata struct {
	verbose bool
	log     *logger.L
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {

	app := cli.NewApp()
	app.Name = "cachecheck"
	app.Usage = "check the consistency of a cache simulation event log"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "log-directory, l",
			Value: os.TempDir(),
			Usage: " write the checker log to `DIR`",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "check",
			Usage:     "check an event log once",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*event log `FILE`",
				},
			},
			Action: runCheck,
		},
		{
			Name:      "watch",
			Usage:     "check an event log each time it changes",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*event log `FILE`",
				},
				cli.DurationFlag{
					Name:  "settle, s",
					Value: defaultSettle,
					Usage: " wait `DURATION` after the last change before checking",
				},
			},
			Action: runWatch,
		},
		{
			Name:   "version",
			Usage:  "display cachecheck version",
			Action: runVersion,
		},
	}

	// start logging before any command
	app.Before = func(c *cli.Context) error {

		verbose := c.GlobalBool("verbose")
		level := "error"
		if verbose {
			level = "info"
		}

		logging := logger.Configuration{
			Directory: c.GlobalString("log-directory"),
			File:      "cachecheck.log",
			Size:      1048576,
			Count:     5,
			Console:   false,
			Levels: map[string]string{
				logger.DefaultTag: level,
			},
		}
		if err := logger.Initialise(logging); nil != err {
			return err
		}

		c.App.Metadata["config"] = &metadata{
			verbose: verbose,
			log:     logger.New("main"),
			e:       c.App.ErrWriter,
			w:       c.App.Writer,
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		logger.Finalise()
		return nil
	}

	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func runVersion(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	fmt.Fprintf(m.w, "%s\n", version)
	return nil
}
