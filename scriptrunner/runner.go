// Package scriptrunner executes a single shell script with a composed
// environment, on either side of a host context, and produces a full
// diagnostic (the script body) when the script fails.
package scriptrunner

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	"cdist/log"
	"cdist/remoteexec"
)

// shebang is the fixed interpreter line every script runs under. "-e" makes
// the shell abort on the first failing command, matching the invariant that
// a manifest or gencode script never partially applies.
const shebang = "/bin/sh"

// Runner executes scripts via an Executor, composing their environment from
// three layers: the inherited process environment (added by the Executor
// itself), engine-global variables, and per-invocation variables.
type Runner struct {
	Executor remoteexec.Executor
	Logger   log.LibraryLogger
}

func New(exec remoteexec.Executor, logger log.LibraryLogger) *Runner {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &Runner{Executor: exec, Logger: logger}
}

// Result captures a script's stdout. Callers that need to distinguish "ran,
// emitted nothing" from "ran, emitted N bytes" check len(Stdout).
type Result struct {
	Stdout []byte
}

// Run executes scriptPath with env = engineGlobal ++ perInvocation (later
// entries win on conflict, and the Executor prepends the inherited process
// environment beneath both). remote selects which side of the host context
// the script runs on. On failure, the script body is fetched and logged to
// stderr before the error is returned, so the operator always sees exactly
// what was run.
func (r *Runner) Run(ctx context.Context, scriptPath string, engineGlobal, perInvocation []string, remote bool) (*Result, error) {
	env := make([]string, 0, len(engineGlobal)+len(perInvocation))
	env = append(env, engineGlobal...)
	env = append(env, perInvocation...)

	if body, err := r.readBody(ctx, scriptPath, remote); err == nil {
		r.Logger.Debug("running %s (remote=%v) digest=%s", scriptPath, remote, digest(body))
	}

	var stdout, stderr bytes.Buffer
	argv := []string{shebang, "-e", scriptPath}
	runErr := r.Executor.Run(ctx, argv, env, nil, &stdout, &stderr, remote)
	if runErr != nil {
		r.dumpDiagnostic(ctx, scriptPath, remote, stderr.Bytes())
		return nil, fmt.Errorf("scriptrunner: %s failed: %w", scriptPath, runErr)
	}

	return &Result{Stdout: stdout.Bytes()}, nil
}

// readBody fetches a script's bytes for digesting; remote bodies are
// fetched with "cat" over the same Executor used to run them.
func (r *Runner) readBody(ctx context.Context, scriptPath string, remote bool) ([]byte, error) {
	if !remote {
		return os.ReadFile(scriptPath)
	}
	var out bytes.Buffer
	if err := r.Executor.Run(ctx, []string{"cat", scriptPath}, nil, nil, &out, nil, true); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// dumpDiagnostic prints the failing script's body and captured stderr, so a
// failure report is self-contained without requiring the operator to SSH in
// by hand.
func (r *Runner) dumpDiagnostic(ctx context.Context, scriptPath string, remote bool, stderr []byte) {
	body, err := r.readBody(ctx, scriptPath, remote)
	if err == nil {
		r.Logger.Error("script %s (remote=%v):\n%s", scriptPath, remote, string(body))
	}
	if len(stderr) > 0 {
		r.Logger.Error("stderr:\n%s", string(stderr))
	}
}

func digest(body []byte) string {
	h := blake3.New()
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)[:8])
}
