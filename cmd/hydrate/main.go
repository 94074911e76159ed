// Command hydrate stores, searches and curates gas hydrate equilibrium
// records.
package main

import (
	"os"

	"github.com/roach88/hydrate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
