// Command tracerd is the Tracer agent: an always-on host process that
// attributes resource usage to bioinformatics pipeline steps and forwards
// telemetry to a remote collector.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
