// Command fixengine runs one FIX 4.2 session, acting as either the
// initiator or the acceptor side of a single CompID pair, per the
// configuration loaded at startup.
package main

import (
	"fmt"
	"os"

	"github.com/quantbridge/fixgo/cmd/fixengine/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
