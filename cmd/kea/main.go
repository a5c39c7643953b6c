// Command kea compiles CUE logic definitions, runs scenarios against them
// and inspects or replays the recorded journal.
package main

import (
	"fmt"
	"os"

	"github.com/cyrke/kea/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
