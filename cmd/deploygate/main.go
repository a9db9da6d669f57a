package main

import (
	"os"

	"deploygate/cmd/deploygate/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
