// Command solvermatrix runs solver plugin test matrices.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/solvermatrix/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
