//go:build !ignore
// +build !ignore

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	dockerContainer "github.com/docker/docker/api/types/container"
	spec "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/containers/podman/v5/pkg/api/handlers"
	"github.com/containers/podman/v5/pkg/bindings"
	"github.com/containers/podman/v5/pkg/bindings/containers"
	"github.com/containers/podman/v5/pkg/specgen"
)

// PodmanShellRunner runs shell commands inside a long-lived podman
// container with the workspace bind-mounted at /workspace. Commands share
// one interactive bash session so state (cwd, env) persists across calls.
type PodmanShellRunner struct {
	imageName     string
	containerName string
	allowFallback bool

	mu   sync.Mutex
	conn context.Context

	// persistent bash session, established lazily on first Run
	execSessionID string
	stdinPipe     io.WriteCloser
	stdoutPipe    io.ReadCloser
	stderrPipe    io.ReadCloser
}

func newPodmanShellRunner(allowFallback bool) *PodmanShellRunner {
	return &PodmanShellRunner{
		imageName:     "localhost/quill-shell:latest",
		containerName: "quill-shell-workspace",
		allowFallback: allowFallback,
	}
}

// socketCandidates lists the podman socket URIs to try, most specific
// first: the macOS machine socket, the default resolution, rootless, root.
func socketCandidates() ([]string, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	candidates := []string{}
	machineSock := filepath.Join(u.HomeDir, ".local/share/containers/podman/machine/podman.sock")
	if _, err := os.Stat(machineSock); err == nil {
		candidates = append(candidates, "unix://"+machineSock)
	}
	return append(candidates,
		"", // bindings' own default resolution
		fmt.Sprintf("unix:///run/user/%s/podman/podman.sock", u.Uid),
		"unix:///var/run/podman/podman.sock",
	), nil
}

// ensureConnection connects to the podman service, trying each socket
// candidate in order.
func (r *PodmanShellRunner) ensureConnection(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	candidates, err := socketCandidates()
	if err != nil {
		return err
	}
	var lastErr error
	for _, uri := range candidates {
		conn, err := bindings.NewConnection(ctx, uri)
		if err == nil {
			slog.Debug("podman connected", "socket", uri)
			r.conn = conn
			return nil
		}
		slog.Debug("podman socket unavailable", "socket", uri, "error", err)
		lastErr = err
	}
	return fmt.Errorf("failed to connect to podman: %w", lastErr)
}

// ensureContainer makes sure the workspace container exists and is running.
func (r *PodmanShellRunner) ensureContainer(ctx context.Context) error {
	if err := r.ensureConnection(ctx); err != nil {
		return err
	}

	inspectData, err := containers.Inspect(r.conn, r.containerName, nil)
	if err != nil {
		// no such container yet
		return r.createContainer(ctx)
	}
	if inspectData.State.Running {
		return nil
	}
	if err := containers.Start(r.conn, r.containerName, nil); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// createContainer creates and starts the workspace container with the
// current directory mounted at /workspace.
func (r *PodmanShellRunner) createContainer(ctx context.Context) error {
	slog.Debug("creating container", "image", r.imageName, "name", r.containerName)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	absPath, err := filepath.Abs(cwd)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	sg := specgen.NewSpecGenerator(r.imageName, false)
	sg.Name = r.containerName
	sg.Command = []string{"bash"}
	terminal := true
	sg.Terminal = &terminal
	sg.Mounts = []spec.Mount{{
		Type:        "bind",
		Source:      absPath,
		Destination: "/workspace",
	}}

	created, err := containers.CreateWithSpec(r.conn, sg, nil)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := containers.Start(r.conn, created.ID, nil); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// ensureSession establishes the persistent interactive bash session inside
// the container on first use.
func (r *PodmanShellRunner) ensureSession(ctx context.Context) error {
	if err := r.ensureContainer(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.execSessionID != "" {
		return nil
	}

	execConfig := &handlers.ExecCreateConfig{
		ExecOptions: dockerContainer.ExecOptions{
			Cmd:          []string{"bash", "-i"},
			WorkingDir:   "/workspace",
			AttachStdin:  true,
			AttachStdout: true,
			AttachStderr: true,
			Tty:          true,
		},
	}
	sessionID, err := containers.ExecCreate(r.conn, r.containerName, execConfig)
	if err != nil {
		return fmt.Errorf("failed to create persistent exec session: %w", err)
	}

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()

	attachOpts := new(containers.ExecStartAndAttachOptions)
	attachOpts.WithInputStream(*bufio.NewReader(stdinReader))
	attachOpts.WithOutputStream(stdoutWriter)
	attachOpts.WithErrorStream(stderrWriter)
	attachOpts.WithAttachInput(true)
	attachOpts.WithAttachOutput(true)
	attachOpts.WithAttachError(true)

	// the attach call blocks for the life of the session
	go func() {
		if err := containers.ExecStartAndAttach(r.conn, sessionID, attachOpts); err != nil {
			slog.Error("persistent exec session detached", "error", err)
			stdinReader.Close()
			stdoutWriter.Close()
			stderrWriter.Close()
			r.mu.Lock()
			r.resetSessionLocked()
			r.mu.Unlock()
		}
	}()

	r.execSessionID = sessionID
	r.stdinPipe = stdinWriter
	r.stdoutPipe = stdoutReader
	r.stderrPipe = stderrReader

	// blank out the prompts so they never pollute captured output
	if _, err := stdinWriter.Write([]byte("export PS1=\"\"; export PS2=\"\"\n")); err != nil {
		return fmt.Errorf("failed to initialize shell prompts: %w", err)
	}
	discard := make([]byte, 4096)
	if _, err := stdoutReader.Read(discard); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read initial bash output: %w", err)
	}
	return nil
}

// Run executes one command in the persistent session. When podman is
// unreachable and fallback is allowed, the command runs on the host.
func (r *PodmanShellRunner) Run(ctx context.Context, params RunInShellInput) (RunInShellOutput, error) {
	if err := r.ensureSession(ctx); err != nil {
		slog.Warn("podman session unavailable", "error", err)
		if r.allowFallback {
			return hostShellRunner{}.Run(ctx, params)
		}
		return RunInShellOutput{}, fmt.Errorf("podman unavailable and fallback to host shell is disabled: %w", err)
	}

	command := composeShellCommand(params.Command) + "\n"
	if _, err := r.stdinPipe.Write([]byte(command)); err != nil {
		return RunInShellOutput{}, fmt.Errorf("failed to write command to persistent session: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := r.stdoutPipe.Read(buf)
	if err != nil && err != io.EOF {
		return RunInShellOutput{}, fmt.Errorf("failed to read from stdout: %w", err)
	}

	// composeShellCommand echoes the exit code as the final line
	lines := strings.Split(string(buf[:n]), "\n")
	last := len(lines) - 1
	return RunInShellOutput{
		Output:   strings.Join(lines[:last], "\n"),
		ExitCode: lines[last],
	}, nil
}

// Close tears down the persistent session. The exec process exits when its
// stdin closes; podman reaps the session with the container.
func (r *PodmanShellRunner) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.execSessionID == "" {
		return nil
	}
	if r.stdinPipe != nil {
		r.stdinPipe.Close()
	}
	if r.stdoutPipe != nil {
		r.stdoutPipe.Close()
	}
	if r.stderrPipe != nil {
		r.stderrPipe.Close()
	}
	r.resetSessionLocked()
	return nil
}

// resetSessionLocked clears session state. Caller holds r.mu.
func (r *PodmanShellRunner) resetSessionLocked() {
	r.execSessionID = ""
	r.stdinPipe = nil
	r.stdoutPipe = nil
	r.stderrPipe = nil
}
