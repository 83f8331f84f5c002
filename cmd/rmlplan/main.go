// Command rmlplan compiles RML mappings written in CUE into operator plans.
package main

import (
	"os"

	"github.com/roach88/rmlplan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
