// Command attune runs the conversational context engine from the
// terminal: it processes message streams, prints arbitration results,
// and can expose the event broadcast endpoint for observers.
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
