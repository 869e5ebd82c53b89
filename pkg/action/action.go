package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/secrets"
	"github.com/cuemby/hutch/pkg/types"
)

// ActionExecutionError reports a registration subcommand that exited
// non-zero. Stderr is surfaced verbatim so the operator sees the
// underlying tool's own message.
type ActionExecutionError struct {
	Action   string
	ExitCode int
	Stderr   string
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s failed (exit %d): %s", e.Action, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// RegisterParams are the parameters of the register action.
type RegisterParams struct {
	InstanceURL string
	Token       string
	RunnerName  string
	Labels      string
}

// Validate checks that every required parameter is present.
func (p RegisterParams) Validate() error {
	if p.InstanceURL == "" {
		return fmt.Errorf("instance-url is required")
	}
	if p.Token == "" {
		return fmt.Errorf("token is required")
	}
	if p.RunnerName == "" {
		return fmt.Errorf("runner-name is required")
	}
	if p.Labels == "" {
		return fmt.Errorf("labels is required")
	}
	return nil
}

// CommandRunner executes one subcommand and returns its combined
// output streams and exit code. The error is non-nil only when the
// command could not run at all.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr string, exitCode int, err error)

// ExecRunner runs the command on the host.
func ExecRunner(ctx context.Context, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitCode(), nil
		}
		return outBuf.String(), errBuf.String(), -1, err
	}
	return outBuf.String(), errBuf.String(), 0, nil
}

// Registrar runs the runner registration action. Registration is
// user-initiated and out of band: it never runs as part of a
// reconciliation pass, because a token is single-use and consuming it
// on a config change would be wrong.
type Registrar struct {
	secrets *secrets.Store
	run     CommandRunner
}

// NewRegistrar returns a Registrar executing through run.
func NewRegistrar(sec *secrets.Store, run CommandRunner) *Registrar {
	return &Registrar{secrets: sec, run: run}
}

// Register registers the act_runner binary against the Gitea instance
// and returns the subcommand's output on success. The token passes
// through the secret store and appears in plaintext only in the
// subcommand's argument vector.
func (r *Registrar) Register(ctx context.Context, params RegisterParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("invalid register parameters: %w", err)
	}

	binary, err := r.secrets.ResolveResource(types.ResourceRunnerBinary)
	if err != nil {
		return "", err
	}

	handle, err := r.secrets.StoreSecret(types.SecretKindRunnerToken, []byte(params.Token))
	if err != nil {
		return "", err
	}
	logger := log.WithComponent("action")
	logger.Info().
		Str("action", "register").
		Str("instance_url", params.InstanceURL).
		Str("runner_name", params.RunnerName).
		Str("token_handle", handle).
		Msg("running runner registration")

	token, err := r.secrets.Reveal(handle)
	if err != nil {
		return "", err
	}

	stdout, stderr, exitCode, err := r.run(ctx, binary,
		"register",
		"--no-interactive",
		"--instance", params.InstanceURL,
		"--token", string(token),
		"--name", params.RunnerName,
		"--labels", params.Labels,
	)
	if err != nil {
		return "", fmt.Errorf("failed to execute %s: %w", binary, err)
	}
	if exitCode != 0 {
		return "", &ActionExecutionError{Action: "register", ExitCode: exitCode, Stderr: stderr}
	}

	return strings.TrimSpace(stdout), nil
}
