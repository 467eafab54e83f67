package main

import (
	"fmt"
	"os"

	"github.com/bryanCE/qscan/internal/cli"
)

var version = "dev" // Will be set by ldflags during build

func main() {
	rootCmd := cli.NewScanCommand()
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
