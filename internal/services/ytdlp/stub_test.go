package ytdlp_test

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"reelpull/internal/services/ytdlp"
)

type exitStatus int

func (e exitStatus) Error() string { return "exit status " + strconv.Itoa(int(e)) }

func (e exitStatus) ExitCode() int { return int(e) }

type stubExecutor struct {
	lines  []ytdlp.Line
	err    error
	calls  int
	args   [][]string
	onRun  func(args []string) []ytdlp.Line
	stdout string
	stderr string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(ytdlp.Line)) error {
	s.calls++
	s.args = append(s.args, append([]string(nil), args...))
	lines := s.lines
	if s.onRun != nil {
		lines = append(lines, s.onRun(args)...)
	}
	for _, line := range lines {
		onLine(line)
	}
	return s.err
}

func (s *stubExecutor) Start(ctx context.Context, binary string, args []string, stderr io.Writer) (ytdlp.Process, error) {
	s.calls++
	s.args = append(s.args, append([]string(nil), args...))
	if s.stderr != "" {
		_, _ = io.WriteString(stderr, s.stderr)
	}
	return &stubProcess{stdout: io.NopCloser(bytes.NewBufferString(s.stdout)), err: s.err}, nil
}

type stubProcess struct {
	stdout io.ReadCloser
	err    error
	killed bool
}

func (p *stubProcess) Stdout() io.ReadCloser { return p.stdout }

func (p *stubProcess) Wait() error { return p.err }

func (p *stubProcess) Kill() error {
	p.killed = true
	return nil
}

func out(text string) ytdlp.Line { return ytdlp.Line{Stream: ytdlp.Stdout, Text: text} }

func errLine(text string) ytdlp.Line { return ytdlp.Line{Stream: ytdlp.Stderr, Text: text} }

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func containsArg(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func outputPath(args []string, ext string) string {
	return strings.Replace(argValue(args, "-o"), "%(ext)s", ext, 1)
}
