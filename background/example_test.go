// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"fmt"

	"github.com/bitmark-inc/distcache/background"
)

type greeter struct {
	name string
	done chan struct{}
}

func Example() {

	proc := &greeter{
		name: "cache",
		done: make(chan struct{}),
	}

	p := background.Start(background.Processes{proc}, "hello")
	<-proc.done
	p.Stop()

	// Output:
	// hello cache
	// finalise cache
}

func (g *greeter) Run(args interface{}, shutdown <-chan struct{}) {

	fmt.Printf("%s %s\n", args.(string), g.name)
	close(g.done)

	<-shutdown
	fmt.Printf("finalise %s\n", g.name)
}
