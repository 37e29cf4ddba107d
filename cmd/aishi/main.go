// Command aishi manages a registry of time-locked tokens: mint tokens bound
// to a secret and an unlock time, unlock them once both are satisfied, and
// serve the registry over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
