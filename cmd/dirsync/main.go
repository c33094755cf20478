// Command dirsync runs Director import sync rules and manages the activity
// log they write.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dirsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
