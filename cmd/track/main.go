// Command track predicts when the satellites of one constellation are
// optically visible from a ground observatory.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "track: %v\n", err)
		os.Exit(1)
	}
}
