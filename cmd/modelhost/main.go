// Command modelhost serves local language models over HTTP. Each loaded
// model runs in its own worker process, started from this same binary.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modelhost:", err)
		os.Exit(1)
	}
}
