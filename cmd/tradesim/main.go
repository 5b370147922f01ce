package main

import (
	"os"

	"github.com/wealthpilot/tradesim/cmd/tradesim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
