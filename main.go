// The main package for the listingcrawler executable.
package main

import (
	"os"

	"github.com/homescan/listing-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
