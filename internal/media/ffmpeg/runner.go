package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
}

// String renders the command for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes external programs.
type Runner interface {
	// Run executes cmd to completion and returns its combined output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// Pipe runs cmds concurrently with each command's stdout connected to the
	// next command's stdin, and waits for all of them.
	Pipe(ctx context.Context, cmds ...Command) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec
	output, err := c.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", cmd.Name, err, lastLines(output, 5))
	}
	return output, nil
}

// Pipe implements Runner. The parent closes its copies of every pipe once
// the processes have started, so a reader that exits early delivers EPIPE to
// its writer instead of leaving it blocked.
func (ExecRunner) Pipe(ctx context.Context, cmds ...Command) error {
	if len(cmds) == 0 {
		return errors.New("pipe: no commands")
	}
	procs := make([]*exec.Cmd, len(cmds))
	stderr := make([]*bytes.Buffer, len(cmds))
	for i, cmd := range cmds {
		c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec
		stderr[i] = &bytes.Buffer{}
		c.Stderr = stderr[i]
		procs[i] = c
	}

	var ends []*os.File
	closeEnds := func() {
		for _, f := range ends {
			_ = f.Close()
		}
		ends = nil
	}
	for i := 0; i < len(procs)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closeEnds()
			return fmt.Errorf("pipe %s: %w", cmds[i].Name, err)
		}
		procs[i].Stdout = w
		procs[i+1].Stdin = r
		ends = append(ends, r, w)
	}

	var result *multierror.Error
	started := 0
	for i, c := range procs {
		if err := c.Start(); err != nil {
			result = multierror.Append(result, fmt.Errorf("start %s: %w", cmds[i].Name, err))
			break
		}
		started++
	}
	closeEnds()

	for i := started - 1; i >= 0; i-- {
		if err := procs[i].Wait(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w: %s", cmds[i].Name, err, lastLines(stderr[i].Bytes(), 5)))
		}
	}
	return result.ErrorOrNil()
}

// lastLines returns up to n trailing non-empty lines of output.
func lastLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
