package main

import (
	"os"

	"github.com/wonny/earnsight/cmd/earnsight/commands"
)

// main is the entry point for the earnsight CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
