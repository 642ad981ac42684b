package main

import (
	"os"

	"github.com/maneesh/talentdrop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
