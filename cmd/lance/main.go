// Command lance is a terminal client for the document analysis service.
package main

import (
	"os"

	"github.com/Iron-Ham/lance/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
