/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/virtualsre/virtualsre/internal/protocol"
)

// StdioConfig contains configuration for the subprocess-pipe transport.
type StdioConfig struct {
	// Command is the server executable to spawn.
	Command string

	// Args are arguments passed to the server executable.
	Args []string

	// WorkDir is the subprocess working directory.
	WorkDir string

	// Env are additional environment variables for the subprocess.
	Env map[string]string
}

// Stdio is the subprocess-pipe transport. It spawns the operation server as
// a child process and exchanges one JSON object per line over its
// stdin/stdout. Request/response pairing is purely ordinal, so calls are
// serialized: each must fully complete before the next is written.
type Stdio struct {
	config StdioConfig
	log    logr.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	nextID int64
}

// NewStdio creates a subprocess-pipe transport.
func NewStdio(config StdioConfig, log logr.Logger) *Stdio {
	return &Stdio{
		config: config,
		log:    log.WithName("stdio").WithValues("command", config.Command),
	}
}

// Connect spawns the server subprocess with piped stdin/stdout. The process
// being started is the whole handshake; no greeting byte is exchanged.
func (t *Stdio) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil
	}

	cmd := exec.Command(t.config.Command, t.config.Args...)
	if t.config.WorkDir != "" {
		cmd.Dir = t.config.WorkDir
	}
	if len(t.config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range t.config.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	// Server diagnostics stay visible; stdout is reserved for the protocol.
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReader(stdout)
	t.nextID = 0

	t.log.Info("server process started", "pid", cmd.Process.Pid)
	return nil
}

// Disconnect terminates the subprocess and waits for it to exit so no
// orphaned process is left behind. Idempotent.
func (t *Stdio) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil
	}

	_ = t.stdin.Close()
	if err := t.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = t.cmd.Process.Kill()
	}
	err := t.cmd.Wait()

	t.log.Info("server process stopped")
	t.cmd = nil
	t.stdin = nil
	t.stdout = nil

	if err != nil && !isExpectedExit(err) {
		return fmt.Errorf("server process exited abnormally: %w", err)
	}
	return nil
}

// isExpectedExit reports whether the wait error is the ordinary consequence
// of the terminate signal.
func isExpectedExit(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && status.Signal() == syscall.SIGTERM
}

// ListOperations sends operations/list and returns the reported descriptors.
func (t *Stdio) ListOperations(ctx context.Context) ([]protocol.OperationDescriptor, error) {
	result, err := t.roundTrip(ctx, protocol.MethodListOperations, struct{}{})
	if err != nil {
		return nil, err
	}
	return decodeOperations(result)
}

// Invoke sends operations/call for the named operation.
func (t *Stdio) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	params := protocol.CallParams{Name: name, Arguments: args}
	result, err := t.roundTrip(ctx, protocol.MethodCallOperation, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(result)
}

// roundTrip writes one request line and reads one response line. The mutex
// enforces the ordinal pairing discipline: the line read always answers the
// line most recently written.
func (t *Stdio) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.nextID++
	req := protocol.Request{
		JSONRPC: protocol.Version,
		ID:      t.nextID,
		Method:  method,
		Params:  params,
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	t.log.V(1).Info("sending request", "id", req.ID, "method", method)

	if _, err := t.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	respLine, err := t.stdout.ReadString('\n')
	if err != nil {
		if strings.TrimSpace(respLine) == "" {
			return nil, &ProtocolError{Reason: fmt.Sprintf("no response from server: %v", err)}
		}
		// A final unterminated line is still a complete response.
	}

	return decodeEnvelope([]byte(respLine))
}
