package hancho

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Output holds the stdout/stderr writers progress and command output go to.
// Threaded through context.Context, grounded on pk/output.go.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StdOutput returns an Output backed by the process's real stdout/stderr.
func StdOutput() *Output {
	return &Output{Stdout: os.Stdout, Stderr: os.Stderr}
}

type outputKey struct{}

// WithOutput attaches out to ctx.
func WithOutput(ctx context.Context, out *Output) context.Context {
	return context.WithValue(ctx, outputKey{}, out)
}

// OutputFromContext returns the Output in ctx, or StdOutput() if none is set.
func OutputFromContext(ctx context.Context) *Output {
	if out, ok := ctx.Value(outputKey{}).(*Output); ok {
		return out
	}
	return StdOutput()
}

// bufferedOutput captures writes per-goroutine during concurrent task
// execution and flushes them to a parent Output on completion, so that
// interleaved subprocess output from concurrently running Tasks doesn't
// garble each other's lines. Grounded on pk/composition.go's parallel.run.
type bufferedOutput struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	parent *Output
}

func newBufferedOutput(parent *Output) *bufferedOutput {
	return &bufferedOutput{stdout: new(bytes.Buffer), stderr: new(bytes.Buffer), parent: parent}
}

func (b *bufferedOutput) Output() *Output {
	return &Output{Stdout: b.stdout, Stderr: b.stderr}
}

func (b *bufferedOutput) Flush() {
	if b.stdout.Len() > 0 {
		_, _ = b.parent.Stdout.Write(b.stdout.Bytes())
	}
	if b.stderr.Len() > 0 {
		_, _ = b.parent.Stderr.Write(b.stderr.Bytes())
	}
}

// Printf writes to the output's stdout.
func Printf(ctx context.Context, format string, a ...any) {
	fmt.Fprintf(OutputFromContext(ctx).Stdout, format, a...)
}

// Errorf writes to the output's stderr.
func Errorf(ctx context.Context, format string, a ...any) {
	fmt.Fprintf(OutputFromContext(ctx).Stderr, format, a...)
}

// colorSupported reports whether the given writer is a TTY that should
// receive ANSI color (NO_COLOR is honored by github.com/fatih/color itself).
func colorSupported(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// stateColor returns the fatih/color printer used for a Task's terminal
// state in progress output.
func stateColor(s State) *color.Color {
	switch s {
	case StateFinished:
		return color.New(color.FgGreen)
	case StateSkipped:
		return color.New(color.FgHiBlack)
	case StateFailed:
		return color.New(color.FgRed, color.Bold)
	case StateBroken:
		return color.New(color.FgMagenta, color.Bold)
	case StateCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}

// PrintTaskLine writes one `[i/N] state desc` progress line, colorized by
// state when out.Stdout is a TTY (spec §2: "streaming progress").
func PrintTaskLine(ctx context.Context, index, total int, t *Task) {
	out := OutputFromContext(ctx)
	desc := t.Description()
	if colorSupported(out.Stdout) {
		c := stateColor(t.State())
		fmt.Fprintf(out.Stdout, "[%d/%d] %s %s\n", index, total, c.Sprint(t.State()), desc)
		return
	}
	fmt.Fprintf(out.Stdout, "[%d/%d] %s %s\n", index, total, t.State(), desc)
}
