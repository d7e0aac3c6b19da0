package main

import (
	"fmt"
	"os"

	"github.com/harun/fiftplay/internal/cli"
)

var version = ""

func main() {
	if version != "" {
		cli.SetVersion(version)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
