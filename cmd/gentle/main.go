package main

import (
	"os"

	"gentle/cmd/gentle/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
