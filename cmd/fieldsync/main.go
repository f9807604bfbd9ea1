// Command fieldsync is an offline-first mutation queue and sync engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fieldsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "fieldsync:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
