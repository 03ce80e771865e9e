package main

import (
	"os"

	"github.com/seuros/funnel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
