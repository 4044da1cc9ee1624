// Command unitctl validates and imports condominium unit registry files.
package main

import (
	"os"

	"github.com/JonMunkholm/condoreg/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
