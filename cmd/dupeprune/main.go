package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	dupeprune "github.com/mattkeenan/dupeprune/pkg"
)

// Exit codes
const (
	exitOK          = 0
	exitUsage       = 1
	exitRootFailure = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := setupSignalContext(context.Background())
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "dupeprune: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dupeprune.ErrRootUnreadable):
		return exitRootFailure
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitUsage
	}
}
