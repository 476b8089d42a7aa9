// Command flowtree runs, tests and inspects flow scenarios.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/flowtree/internal/cli"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
