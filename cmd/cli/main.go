package main

import (
	"os"

	"github.com/vakspot/vakspot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
