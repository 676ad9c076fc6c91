// Command importctl validates and submits transaction files from the shell.
package main

import (
	"os"

	"github.com/JonMunkholm/txnimport/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
