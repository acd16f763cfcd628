package main

import (
	"os"

	"github.com/tillfold-dev/tillfold/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
