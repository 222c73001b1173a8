// Command framehub tracks mastery progress through the item catalog.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lwoollett/FrameHub/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
