// The main package for the leadgen-engine executable.
package main

import (
	"os"

	"github.com/leadgenhq/leadgen-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
