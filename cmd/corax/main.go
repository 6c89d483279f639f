// Package main provides the entry point for the corax CLI.
package main

import (
	"os"

	"github.com/coraxsearch/corax/cmd/corax/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
