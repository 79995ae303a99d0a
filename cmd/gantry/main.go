package main

import (
	"os"

	"github.com/gantryhq/gantry/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
