package main

import (
	"os"

	"github.com/ibridge-systems/ibridge/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
