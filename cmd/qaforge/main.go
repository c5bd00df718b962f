// Command qaforge turns a source tree into question/answer training samples.
package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
