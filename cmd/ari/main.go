package main

import (
	"os"

	"github.com/aridash/ari/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
