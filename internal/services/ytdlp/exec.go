package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Stream identifies which pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Line is one line of subprocess output.
type Line struct {
	Stream Stream
	Text   string
}

// Process is a running subprocess whose stdout is consumed by the caller.
type Process interface {
	Stdout() io.ReadCloser
	Wait() error
	Kill() error
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes the command and delivers every output line to onLine from a
	// single goroutine, in arrival order per stream.
	Run(ctx context.Context, binary string, args []string, onLine func(Line)) error
	// Start launches the command with stdout left to the caller and stderr
	// copied into the given writer.
	Start(ctx context.Context, binary string, args []string, stderr io.Writer) (Process, error)
}

const lineBuffer = 64

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(Line)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	lines := make(chan Line, lineBuffer)
	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, stream Stream) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lines <- Line{Stream: stream, Text: scanner.Text()}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout, Stdout)
	go scan(stderr, Stderr)
	go func() {
		wg.Wait()
		close(lines)
	}()

	for line := range lines {
		if onLine != nil {
			onLine(line)
		}
	}

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	return cmd.Wait()
}

func (commandExecutor) Start(ctx context.Context, binary string, args []string, stderr io.Writer) (Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	return &cmdProcess{cmd: cmd, stdout: stdout}, nil
}

type cmdProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (p *cmdProcess) Stdout() io.ReadCloser { return p.stdout }

func (p *cmdProcess) Wait() error { return p.cmd.Wait() }

func (p *cmdProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// exitCode extracts a process exit status from err, or -1 when err is not an
// exit status (start failure, context cancellation before start).
func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) WriteLine(line string) {
	_, _ = t.Write([]byte(line + "\n"))
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
