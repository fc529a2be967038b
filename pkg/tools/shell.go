package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/invopop/jsonschema"

	"github.com/arclane/conduit/pkg/tool"
)

// ShellExec runs a shell command inside an ephemeral container of Image,
// so a compromised or buggy command cannot touch the host filesystem or
// network beyond what the container image allows. Grounded on
// pkg/tools/command.go's command-execution tool, reworked onto Docker for
// the sandboxing spec §1 implies ("shell I/O" as a first-class tool kind
// under policy control) but the teacher's in-process exec.Command does not
// itself provide.
type ShellExec struct {
	Image   string
	Timeout time.Duration
}

const defaultShellTimeout = 30 * time.Second

func (ShellExec) Definition() tool.Def {
	return tool.Def{
		Name:        "shell_exec",
		Description: "Run a shell command in a sandboxed container and return its combined output.",
		InputSchema: &jsonschema.Schema{Required: []string{"command"}},
	}
}

func (s ShellExec) Execute(ctx context.Context, ectx tool.ExecContext, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("shell_exec: command is required")
	}

	image := s.Image
	if image == "" {
		image = "alpine:3.20"
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return "", fmt.Errorf("shell_exec: docker client: %w", err)
	}
	defer cli.Close()

	resp, err := cli.ContainerCreate(runCtx, &container.Config{
		Image:      image,
		Cmd:        []string{"/bin/sh", "-c", command},
		Tty:        false,
		WorkingDir: "/workspace",
	}, &container.HostConfig{
		AutoRemove:     true,
		NetworkMode:    "none",
		PortBindings:   nat.PortMap{},
		ReadonlyRootfs: false,
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("shell_exec: create container: %w", err)
	}

	if err := cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("shell_exec: start container: %w", err)
	}

	statusCh, errCh := cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("shell_exec: wait: %w", err)
		}
	case st := <-statusCh:
		exitCode = st.StatusCode
	}

	out, err := cli.ContainerLogs(runCtx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("shell_exec: logs: %w", err)
	}
	defer out.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out); err != nil {
		return "", fmt.Errorf("shell_exec: read logs: %w", err)
	}

	if exitCode != 0 {
		return buf.String(), fmt.Errorf("shell_exec: command exited %d", exitCode)
	}
	return buf.String(), nil
}
