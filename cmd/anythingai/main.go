package main

import (
	"fmt"
	"os"

	"github.com/anything-ai/anything-ai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
