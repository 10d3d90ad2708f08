package main

import (
	"os"

	"github.com/larsmagnus/tfm/cmd/tfm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
