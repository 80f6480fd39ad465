// Command stash reads and writes entities in a local object store.
package main

import (
	"os"

	"github.com/roach88/stash/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
