package hancho

import (
	"os"
	"sync"
)

// TaskView is the narrow interface exposed to a CommandFunc (spec §9
// "Callable commands": "Expose a narrow Task-view interface rather than
// the full internal Task"). It carries the task's resolved paths and
// config but none of its state-machine or scheduler plumbing.
type TaskView struct {
	task *Task
}

// InFiles returns the task's resolved, absolute input paths.
func (v *TaskView) InFiles() []string { return v.task.InFiles() }

// OutFiles returns the task's resolved, absolute output paths.
func (v *TaskView) OutFiles() []string { return v.task.OutFiles() }

// Config returns the task's Config, for a callable that needs to read
// arbitrary fields beyond in_files/out_files.
func (v *TaskView) Config() *Config { return v.task.config }

// CommandFunc is a command list element that runs as a Go function rather
// than a subprocess (spec §4.3 RUNNING_COMMANDS, §9 "Callable commands").
// It is invoked synchronously, with the working directory changed to the
// task's task_dir for the duration of the call, and must return a non-nil
// error to mark the command as failed.
type CommandFunc func(*TaskView) error

// dirStack serializes process-wide working-directory changes around
// callable commands. os.Chdir is process-global, so — unlike subprocess
// execution, which gets its own cwd via exec.Cmd.Dir without touching the
// parent process — running a CommandFunc in the caller's goroutine must
// hold this lock for the call's duration: only one callable command
// changes directory at a time.
//
// Grounded on original_source/hancho.py's App.pushdir/popdir, adapted from
// an explicit dirstack (safe under Python's single-threaded event loop) to
// a mutex (required once Tasks run on concurrent goroutines).
var dirStack sync.Mutex

// withTaskDir runs fn with the process's working directory set to dir,
// restoring the previous directory afterward on every exit path.
func withTaskDir(dir string, fn func() error) error {
	dirStack.Lock()
	defer dirStack.Unlock()

	if dir == "" {
		return fn()
	}
	prev, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return err
	}
	defer os.Chdir(prev)

	return fn()
}
