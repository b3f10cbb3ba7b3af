package main

import (
	"os"

	"github.com/mvarela/gapfill/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
