package remoteexec

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// SSHExecutor runs local operations directly via os/exec and remote
// operations by shelling out to the ssh/scp binaries, matching how cdist's
// own driver reaches a target: no SSH library, just the same client the
// operator would use by hand.
type SSHExecutor struct {
	SSHBinary  string
	SCPBinary  string
	SSHOptions []string
	RemoteUser string
	Host       string
}

// NewSSH builds an SSHExecutor targeting host as remoteUser, shelling out to
// sshBinary/scpBinary with the given extra options on every invocation.
func NewSSH(sshBinary, scpBinary, remoteUser, host string, sshOptions []string) *SSHExecutor {
	return &SSHExecutor{
		SSHBinary:  sshBinary,
		SCPBinary:  scpBinary,
		SSHOptions: sshOptions,
		RemoteUser: remoteUser,
		Host:       host,
	}
}

func (e *SSHExecutor) destination() string {
	if strings.Contains(e.Host, "@") {
		return e.Host
	}
	return fmt.Sprintf("%s@%s", e.RemoteUser, e.Host)
}

func (e *SSHExecutor) Run(ctx context.Context, argv []string, env []string, stdin io.Reader, stdout, stderr io.Writer, remote bool) error {
	if len(argv) == 0 {
		return &CommandError{Argv: argv, Remote: remote, Err: errEmptyArgv}
	}

	var cmd *exec.Cmd
	if remote {
		sshArgv := append([]string{}, e.SSHOptions...)
		sshArgv = append(sshArgv, e.destination(), "--")
		sshArgv = append(sshArgv, remoteEnvPrefix(env)...)
		sshArgv = append(sshArgv, argv...)
		cmd = exec.CommandContext(ctx, e.SSHBinary, sshArgv...)
	} else {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Env = append(os.Environ(), env...)
	}

	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return &CommandError{Argv: cmd.Args, Remote: remote, Err: err}
	}
	return nil
}

func (e *SSHExecutor) Mkdir(ctx context.Context, path string, remote bool) error {
	if !remote {
		if err := os.MkdirAll(path, 0755); err != nil {
			return &CommandError{Argv: []string{"mkdir", "-p", path}, Remote: false, Err: err}
		}
		return nil
	}
	return e.Run(ctx, []string{"mkdir", "-p", path}, nil, nil, nil, nil, true)
}

func (e *SSHExecutor) RemoveTree(ctx context.Context, path string, remote bool) error {
	if !remote {
		if err := os.RemoveAll(path); err != nil {
			return &CommandError{Argv: []string{"rm", "-rf", path}, Remote: false, Err: err}
		}
		return nil
	}
	return e.Run(ctx, []string{"rm", "-rf", path}, nil, nil, nil, nil, true)
}

func (e *SSHExecutor) Copy(ctx context.Context, src, dst string) error {
	scpArgv := append([]string{}, e.SSHOptions...)
	scpArgv = append(scpArgv, "-r", src, fmt.Sprintf("%s:%s", e.destination(), dst))
	cmd := exec.CommandContext(ctx, e.SCPBinary, scpArgv...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &CommandError{Argv: cmd.Args, Remote: true, Err: err}
	}
	return nil
}

// remoteEnvPrefix renders env ("KEY=VALUE" strings) as a "env KEY=VALUE ..."
// prefix, since plain ssh does not forward a custom environment without
// server-side AcceptEnv configuration.
func remoteEnvPrefix(env []string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env)+1)
	out = append(out, "env")
	out = append(out, env...)
	return out
}
