package main

import (
	"os"

	"github.com/dshills/critic/internal/cli"
)

func main() {
	os.Exit(cli.RunCritic())
}
