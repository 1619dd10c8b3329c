package hancho

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var errCallableBoom = errors.New("callable boom")

func newTestRoot(t *testing.T) (*Config, string) {
	t.Helper()
	dir := t.TempDir()
	root := NewConfig()
	root.Set("repo_dir", dir)
	root.Set("root_dir", dir)
	root.Set("build_dir", filepath.Join(dir, "build"))
	root.Set("job_count", 2)
	return root, dir
}

// disableEngineStaleness keeps EngineSourceMTime from firing "build engine
// changed" during tests, since the test binary's own mtime is unrelated to
// the fixtures under test.
func disableEngineStaleness(t *testing.T) {
	t.Helper()
	prev := EngineSourceMTime
	EngineSourceMTime = func() int64 { return 0 }
	t.Cleanup(func() { EngineSourceMTime = prev })
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTaskRunsCommandAndFinishes(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "in.txt",
		"out_dst":  "out.txt",
		"command":  "cp {in_src} {out_dst}",
	})
	app.Register(task)

	stats := app.Run(context.Background())
	if task.State() != StateFinished {
		t.Fatalf("task state = %s (reason %q); want FINISHED", task.State(), task.Reason())
	}
	if stats.Finished != 1 {
		t.Fatalf("stats = %+v; want 1 finished", stats)
	}
	if !FileExists(filepath.Join(dir, "build", "out.txt")) {
		t.Fatal("out.txt was not created under build_dir")
	}
}

func TestTaskSkipsWhenUpToDate(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	run := func() State {
		app := NewApp(root, 2)
		task := NewTask(root, map[string]any{
			"task_dir": dir,
			"in_src":   "in.txt",
			"out_dst":  "out.txt",
			"command":  "cp {in_src} {out_dst}",
		})
		app.Register(task)
		app.Run(context.Background())
		return task.State()
	}

	if got := run(); got != StateFinished {
		t.Fatalf("first run state = %s; want FINISHED", got)
	}
	time.Sleep(10 * time.Millisecond)
	if got := run(); got != StateSkipped {
		t.Fatalf("second run state = %s; want SKIPPED (nothing changed)", got)
	}
}

func TestTaskFailsOnNonzeroExit(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "in.txt",
		"out_dst":  "out.txt",
		"command":  "exit 1",
	})
	app.Register(task)
	app.Run(context.Background())

	if task.State() != StateFailed {
		t.Fatalf("task state = %s; want FAILED", task.State())
	}
}

func TestTaskBrokenOnMissingInput(t *testing.T) {
	root, dir := newTestRoot(t)

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "does-not-exist.txt",
		"out_dst":  "out.txt",
		"command":  "cp {in_src} {out_dst}",
	})
	app.Register(task)
	app.Run(context.Background())

	if task.State() != StateBroken {
		t.Fatalf("task state = %s; want BROKEN", task.State())
	}
}

func TestTaskWithNoOutputsAlwaysReruns(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "in.txt",
		"command":  "true",
	})
	app.Register(task)
	app.Run(context.Background())

	if task.State() != StateFinished {
		t.Fatalf("task state = %s; want FINISHED (no outputs means always rerun)", task.State())
	}
}

func TestTaskCancelledWhenUpstreamFails(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	app := NewApp(root, 2)
	upstream := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "a.txt",
		"out_dst":  "b.txt",
		"command":  "exit 1",
	})
	app.Register(upstream)

	downstream := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   NewPromise(upstream),
		"out_dst":  "c.txt",
		"command":  "cp {in_src} {out_dst}",
	})
	app.Register(downstream)

	app.Run(context.Background())

	if upstream.State() != StateFailed {
		t.Fatalf("upstream state = %s; want FAILED", upstream.State())
	}
	if downstream.State() != StateCancelled {
		t.Fatalf("downstream state = %s; want CANCELLED without running its command", downstream.State())
	}
	if FileExists(filepath.Join(dir, "build", "c.txt")) {
		t.Fatal("downstream command ran despite its input task failing")
	}
}

func TestTaskForceAlwaysReruns(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	run := func(ctx context.Context) State {
		app := NewApp(root, 2)
		task := NewTask(root, map[string]any{
			"task_dir": dir,
			"in_src":   "in.txt",
			"out_dst":  "out.txt",
			"command":  "cp {in_src} {out_dst}",
		})
		app.Register(task)
		app.Run(ctx)
		return task.State()
	}

	if got := run(context.Background()); got != StateFinished {
		t.Fatalf("first run state = %s; want FINISHED", got)
	}
	time.Sleep(10 * time.Millisecond)

	if got := run(context.Background()); got != StateSkipped {
		t.Fatalf("second run (no force) state = %s; want SKIPPED", got)
	}

	forced := context.Background()
	forced = WithForce(forced, true)
	if got := run(forced); got != StateFinished {
		t.Fatalf("forced run state = %s; want FINISHED regardless of mtimes", got)
	}
}

func TestTaskDepfileDependencyTriggersRerun(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	buildDir := filepath.Join(dir, "build")
	writeFile(t, filepath.Join(dir, "main.cpp"), "int main(){}")
	writeFile(t, filepath.Join(dir, "a.h"), "")
	writeFile(t, filepath.Join(dir, "b.h"), "")
	writeFile(t, filepath.Join(dir, "unrelated.h"), "")
	writeFile(t, filepath.Join(buildDir, "main.d"),
		"main.o: main.cpp a.h \\\n  b.h\n")

	run := func() State {
		app := NewApp(root, 2)
		task := NewTask(root, map[string]any{
			"task_dir":   dir,
			"in_src":     "main.cpp",
			"out_obj":    "main.o",
			"in_depfile": "main.d",
			"command":    "cp {in_src} {out_obj}",
		})
		app.Register(task)
		app.Run(context.Background())
		return task.State()
	}

	if got := run(); got != StateFinished {
		t.Fatalf("first run state = %s; want FINISHED", got)
	}
	time.Sleep(10 * time.Millisecond)

	if got := run(); got != StateSkipped {
		t.Fatalf("second run state = %s; want SKIPPED", got)
	}

	future := time.Now().Add(10 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "unrelated.h"), future, future); err != nil {
		t.Fatal(err)
	}
	if got := run(); got != StateSkipped {
		t.Fatalf("run after touching unlisted header state = %s; want SKIPPED", got)
	}

	if err := os.Chtimes(filepath.Join(dir, "b.h"), future, future); err != nil {
		t.Fatal(err)
	}
	if got := run(); got != StateFinished {
		t.Fatalf("run after touching depfile dependency b.h state = %s; want FINISHED", got)
	}
}

func TestTaskRunsCallableCommand(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	var sawInFile, sawOutFile string
	var cwdDuringCall string
	fn := CommandFunc(func(v *TaskView) error {
		cwdDuringCall, _ = os.Getwd()
		if len(v.InFiles()) > 0 {
			sawInFile = v.InFiles()[0]
		}
		if len(v.OutFiles()) > 0 {
			sawOutFile = v.OutFiles()[0]
		}
		return os.WriteFile(v.OutFiles()[0], []byte("written by callable"), 0o644)
	})

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "in.txt",
		"out_dst":  "out.txt",
		"command":  fn,
	})
	app.Register(task)
	app.Run(context.Background())

	if task.State() != StateFinished {
		t.Fatalf("task state = %s (reason %q); want FINISHED", task.State(), task.Reason())
	}
	if cwdDuringCall != dir {
		t.Fatalf("callable ran with cwd %q; want task_dir %q", cwdDuringCall, dir)
	}
	if sawInFile == "" || sawOutFile == "" {
		t.Fatal("TaskView did not expose resolved in_files/out_files")
	}
	if !FileExists(filepath.Join(dir, "build", "out.txt")) {
		t.Fatal("callable command did not produce its declared output")
	}
}

func TestTaskCallableFailureFailsTask(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "in.txt"), "hello")

	fn := CommandFunc(func(v *TaskView) error {
		return errCallableBoom
	})

	app := NewApp(root, 2)
	task := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "in.txt",
		"out_dst":  "out.txt",
		"command":  fn,
	})
	app.Register(task)
	app.Run(context.Background())

	if task.State() != StateFailed {
		t.Fatalf("task state = %s; want FAILED", task.State())
	}
}

func TestTaskDependencyChaining(t *testing.T) {
	disableEngineStaleness(t)
	root, dir := newTestRoot(t)
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	app := NewApp(root, 2)
	first := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   "a.txt",
		"out_dst":  "b.txt",
		"command":  "cp {in_src} {out_dst}",
	})
	app.Register(first)

	second := NewTask(root, map[string]any{
		"task_dir": dir,
		"in_src":   NewPromise(first),
		"out_dst":  "c.txt",
		"command":  "cp {in_src} {out_dst}",
	})
	app.Register(second)

	app.Run(context.Background())

	if first.State() != StateFinished || second.State() != StateFinished {
		t.Fatalf("states: first=%s second=%s; want both FINISHED", first.State(), second.State())
	}
	if !FileExists(filepath.Join(dir, "build", "c.txt")) {
		t.Fatal("c.txt was not created by the dependent task")
	}
}
