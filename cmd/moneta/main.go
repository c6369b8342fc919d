package main

import (
	"os"

	"github.com/moneta-app/moneta/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
