// Command pipectl runs windowed data pipelines and inspects their run
// records.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
