package main

// Entry point: runs the cobra command tree and exits 1 on any returned error

import (
	"fmt"
	"os"

	"earnos-checkin/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
