// Command semdex is the entry point for the semdex semantic indexer.
// It provides a CLI interface (via Cobra) for ingesting document trees into
// a vector store, searching them, and serving the index over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/semdex/cmd/semdex/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
