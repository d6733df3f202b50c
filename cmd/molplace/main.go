// Command molplace places coarse-grained molecules into a simulation box.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/molplace/internal/cli"
	"github.com/matzehuels/molplace/pkg/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.New(os.Stderr, cli.LogInfo).RootCommand().ExecuteContext(ctx)
	code := errors.ExitCode(err)
	if code == errors.ExitFailure || code == errors.ExitInternal {
		fmt.Fprintln(os.Stderr, err)
	}
	return code
}
