// Package remoteexec abstracts the four operations the driver needs against
// either the local filesystem/process table or a remote host reached over
// SSH: run a command, make a directory, remove a tree, copy a file or
// directory across.
package remoteexec

import (
	"context"
	"fmt"
	"io"
)

// Executor performs shell-level operations, optionally against a remote
// host. The remote flag on Run/Mkdir/RemoveTree lets a single host context
// reuse one Executor for both its local staging work (manifests, gencode,
// code-local) and its remote target work (explorers, code-remote), since
// both sides of a cdist run share the same SSH connection parameters.
type Executor interface {
	// Run executes argv with env appended to the inherited environment. When
	// remote is true the command runs on the target host; otherwise it runs
	// on the machine driving the configuration run. argv is executed as
	// given; Run adds no interpreter. Scripts get "/bin/sh -e" from their
	// caller (scriptrunner passes it as argv[0] and argv[1]) or from their own
	// first line.
	Run(ctx context.Context, argv []string, env []string, stdin io.Reader, stdout, stderr io.Writer, remote bool) error

	// Mkdir creates path (and parents) with mkdir -p semantics.
	Mkdir(ctx context.Context, path string, remote bool) error

	// RemoveTree removes path recursively with rm -rf semantics. Removing a
	// path that does not exist is not an error.
	RemoveTree(ctx context.Context, path string, remote bool) error

	// Copy recursively transfers src (always local) to dst (always on the
	// target host). It is the only direction cdist ever needs.
	Copy(ctx context.Context, src, dst string) error
}

// CommandError wraps a failed invocation with enough context for the caller
// to print a useful diagnostic: the argv that was run and whether it ran
// locally or remotely.
type CommandError struct {
	Argv   []string
	Remote bool
	Err    error
}

func (e *CommandError) Error() string {
	where := "local"
	if e.Remote {
		where = "remote"
	}
	return fmt.Sprintf("%s command failed: %v: %v", where, e.Argv, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
