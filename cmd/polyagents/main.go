// Command polyagents runs the agent trade-decision engine. See
// `polyagents --help` for the subcommands.
package main

import (
	"context"
	"os"

	"github.com/alanyoungcy/polyagents/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
