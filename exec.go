package hancho

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long a cancelled subprocess gets to exit gracefully
// after receiving SIGINT before it's force-killed.
const waitDelay = 5 * time.Second

// runCommands executes every entry of config.command in order, stopping at
// the first failure (spec §4.3 RUNNING_COMMANDS). A command element is
// either a shell line (string) or a CommandFunc (spec §9 "Callable
// commands"), run synchronously with the working directory pushed to
// task_dir for its duration. A command's exit code is inverted when
// config.should_fail is true, so a command expected to fail succeeding is
// itself reported as a failure.
//
// Grounded on pk/exec.go's Exec: in verbose mode command output goes to the
// task's buffered Output, which is flushed to the shared Output once the
// task's commands are done; otherwise output is captured and only surfaced
// on failure; graceful SIGINT-then-kill shutdown is carried over from
// pk/exec_unix.go/pk/exec_other.go unchanged. The callable-vs-subprocess
// branch is grounded on original_source/hancho.py's run_command.
func (t *Task) runCommands(ctx context.Context) error {
	cmdVal, err := t.config.Get("command")
	if err != nil {
		return nil
	}
	elems := commandElements(cmdVal)
	shouldFail := false
	if sf, err := t.config.Get("should_fail"); err == nil {
		if b, ok := sf.(bool); ok {
			shouldFail = b
		}
	}
	taskDir, _ := t.config.Get("task_dir")
	taskDirStr, _ := taskDir.(string)

	out := OutputFromContext(ctx)
	buffered := newBufferedOutput(out)
	defer buffered.Flush()

	for _, elem := range elems {
		if fn, ok := elem.(CommandFunc); ok {
			if err := t.runCallable(ctx, fn, taskDirStr, shouldFail); err != nil {
				return err
			}
			continue
		}
		line, _ := elem.(string)
		if line == "" {
			continue
		}
		if err := t.runOne(ctx, line, taskDirStr, shouldFail, buffered); err != nil {
			return err
		}
	}
	return nil
}

// commandElements flattens config.command the way Flatten does, except a
// CommandFunc leaf is kept as itself instead of being stringified.
func commandElements(v any) []any {
	var out []any
	flattenCommandInto(v, &out)
	return out
}

func flattenCommandInto(v any, out *[]any) {
	switch t := v.(type) {
	case nil:
		return
	case CommandFunc:
		*out = append(*out, t)
	case string:
		if t != "" {
			*out = append(*out, t)
		}
	case []string:
		for _, e := range t {
			flattenCommandInto(e, out)
		}
	case []any:
		for _, e := range t {
			flattenCommandInto(e, out)
		}
	default:
		*out = append(*out, stringify(v))
	}
}

// runCallable invokes a CommandFunc synchronously with a narrow TaskView,
// inside a task_dir-scoped working directory change (spec §9 "Callable
// commands"). Dry runs skip invocation entirely, matching the subprocess
// path.
func (t *Task) runCallable(ctx context.Context, fn CommandFunc, taskDir string, shouldFail bool) error {
	if DryRun(ctx) {
		return nil
	}
	callErr := withTaskDir(taskDir, func() error {
		return fn(&TaskView{task: t})
	})
	failed := callErr != nil
	if shouldFail {
		failed = !failed
	}
	if !failed {
		t.returncode = 0
		return nil
	}
	return fmt.Errorf("%w: callable command: %v", ErrCommandFailed, callErr)
}

func (t *Task) runOne(ctx context.Context, line, dir string, shouldFail bool, buffered *bufferedOutput) error {
	if Verbose(ctx) {
		fmt.Fprintf(buffered.Output().Stdout, "%s\n", line)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.WaitDelay = waitDelay
	setGracefulShutdown(cmd)

	if DryRun(ctx) {
		return nil
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	if Verbose(ctx) {
		cmd.Stdout = buffered.Output().Stdout
		cmd.Stderr = buffered.Output().Stderr
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	runErr := cmd.Run()
	t.stdout = stdoutBuf.String()
	t.stderr = stderrBuf.String()
	if cmd.ProcessState != nil {
		t.returncode = cmd.ProcessState.ExitCode()
	}

	failed := runErr != nil
	if shouldFail {
		failed = !failed
	}
	if !failed {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrCancelled, line)
	}
	if !Verbose(ctx) {
		if stdoutBuf.Len() > 0 {
			_, _ = buffered.Output().Stdout.Write(stdoutBuf.Bytes())
		}
		if stderrBuf.Len() > 0 {
			_, _ = buffered.Output().Stderr.Write(stderrBuf.Bytes())
		}
	}
	return fmt.Errorf("%w: %q: %v", ErrCommandFailed, line, runErr)
}
