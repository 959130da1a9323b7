package main

import (
	"os"

	"github.com/TannerBurns/termai/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
