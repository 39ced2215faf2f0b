// Package main is the entrypoint for dashctl, a command-line client for the
// job-application dashboard API. It keeps a session between invocations and
// renews the access credential transparently.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/runner"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitSignIn  = 3 // the session is gone; the user must log in again
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "dashctl: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	action, err := cmd.prepare(args[1:], stdin)
	if err != nil {
		if errors.Is(err, errHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "dashctl %s: %v\n", cmd.name, err)
		return exitUsage
	}

	err = runner.Run(ctx, runner.Params{
		Name:    cmd.name,
		Out:     stdout,
		Command: action,
	})
	return exitCode(stderr, cmd.name, err)
}

func exitCode(stderr io.Writer, name string, err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.IsSessionTerminated(err):
		fmt.Fprintf(stderr, "dashctl %s: %v\nsession ended; run `dashctl login` to sign in again\n", name, err)
		return exitSignIn
	default:
		fmt.Fprintf(stderr, "dashctl %s: %v\n", name, err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: dashctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "configuration is read from DASHCLIENT_* environment variables")
}
