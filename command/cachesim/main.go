// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/distcache/checker"
	"github.com/bitmark-inc/distcache/configuration"
	"github.com/bitmark-inc/distcache/eventlog"
	"github.com/bitmark-inc/distcache/fault"
	"github.com/bitmark-inc/distcache/simulator"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
		{Long: "check", HasArg: getoptions.NO_ARGUMENT, Short: 'k'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// these commands only inspect the configuration
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	verbose := len(options["verbose"]) > 0
	quiet := len(options["quiet"]) > 0
	check := len(options["check"]) > 0

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// last chance logging for node panics
	if err = fault.Initialise(); nil != err {
		exitwithstatus.Message("%s: fault setup failed with error: %s", program, err)
	}
	defer fault.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("theConfiguration: %v", theConfiguration)

	// ------------------
	// start of real main
	// ------------------

	log.Infof("event log: %q", theConfiguration.EventLog)
	writer, err := eventlog.Create(theConfiguration.EventLog)
	if nil != err {
		log.Criticalf("event log create error: %s", err)
		exitwithstatus.Message("event log create error: %s", err)
	}
	defer writer.Close()

	// a copy of the events is kept for checking at the end
	var sink eventlog.Sink = writer
	memory := eventlog.NewMemory()
	if check {
		sink = eventlog.Tee{writer, memory}
	}

	sim, err := simulator.New(theConfiguration, sink)
	if nil != err {
		log.Criticalf("simulator setup error: %s", err)
		exitwithstatus.Message("simulator setup error: %s", err)
	}
	defer sim.Stop()

	if verbose {
		fmt.Printf("%s", sim)
	}

	err = sim.Start()
	if nil != err {
		log.Criticalf("simulator start error: %s", err)
		exitwithstatus.Message("simulator start error: %s", err)
	}

	// interrupt stops issuing actions, outstanding requests still finish
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		log.Infof("received signal: %v", sig)
		if !quiet {
			fmt.Printf("\nreceived signal: %v\n", sig)
		}
		cancel()
	}()

	workload := simulator.NewWorkload(sim)
	result, err := workload.Run(ctx)
	if nil != err {
		log.Warnf("workload stopped: %s", err)
	}

	drain, finish := context.WithTimeout(context.Background(), workload.DrainTimeout())
	defer finish()
	if err := sim.WaitIdle(drain); nil != err {
		log.Warnf("clients still busy: %s", err)
	}

	sim.Stop()
	log.Infof("tree:\n%s", sim)
	for address, stats := range sim.Statistics() {
		log.Infof("node: %d  stats: %v", address, stats)
	}

	if err := writer.Err(); nil != err {
		log.Errorf("event log write error: %s", err)
		exitwithstatus.Message("event log write error: %s", err)
	}

	if !quiet {
		printJson(os.Stdout, summary{
			Result: result,
			Totals: sim.Totals(),
		})
		if verbose {
			fmt.Printf("%s", sim)
		}
	}

	if check {
		report := checker.Check(memory.Log())
		if !quiet {
			fmt.Printf("%s", report)
		}
		if err := report.Err(); nil != err {
			exitwithstatus.Message("%s: %s", program, err)
		}
	}
}

// printed at the end of a run
type summary struct {
	Result simulator.Result `json:"result"`
	Totals simulator.Totals `json:"totals"`
}
