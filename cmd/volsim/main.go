package main

import (
	"os"

	"github.com/rustyeddy/volsim/cmd/volsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
