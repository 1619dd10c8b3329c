package hancho

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// taskInit performs the TASK_INIT phase (spec §4.3): expand task_dir and
// build_dir, macro-expand every in_*/out_* field, resolve them to absolute
// paths (writing the results back into config), THEN expand desc/command
// so their macros see the absolute paths, and finally run the sanity
// checks that turn a malformed Task into BROKEN rather than a confusing
// runtime failure later.
//
// Grounded on pk/task.go's up-front flag/field resolution (resolve once,
// before doing any work, and fail loudly), with the expand-then-absolutize
// ordering carried over from original_source/hancho.py's task_init (in_/
// out_ fields are macro-expanded and path-joined before desc/command are
// expanded, so `{out_obj}` in a command sees the final path).
func (t *Task) taskInit(ctx context.Context) error {
	if err := t.expandDirs(); err != nil {
		return err
	}
	if err := t.expandInOutFields(); err != nil {
		return err
	}
	if err := t.resolveInOutFiles(); err != nil {
		return err
	}
	if err := t.expandDescAndCommand(); err != nil {
		return err
	}
	if err := t.sanityCheck(); err != nil {
		return err
	}
	if !DryRun(ctx) {
		if err := t.mkdirs(); err != nil {
			return err
		}
	}
	if t.app != nil {
		if err := t.app.reserveOutFiles(t); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) expandDirs() error {
	for _, key := range []string{"task_dir", "build_dir"} {
		v, err := t.config.Get(key)
		if err != nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		expanded, err := ExpandString(t.config, s)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", key, err)
		}
		t.config.Set(key, expanded)
	}
	return nil
}

// expandInOutFields macro-expands every in_*/out_* value in place, before
// any path-joining happens (spec §4.3 step 2: expansion must precede
// path-joining, since "prefix + swap(abs_path) != abs(prefix + swap(path))").
func (t *Task) expandInOutFields() error {
	for _, k := range t.config.Keys() {
		switch {
		case len(k) >= 3 && k[:3] == "in_", len(k) >= 4 && k[:4] == "out_":
			v, err := t.config.Get(k)
			if err != nil {
				continue
			}
			expanded, err := Expand(t.config, v)
			if err != nil {
				return fmt.Errorf("expanding %s: %w", k, err)
			}
			t.config.Set(k, expanded)
		}
	}
	return nil
}

// expandDescAndCommand macro-expands desc and command after in_*/out_*
// have already been absolutized by resolveInOutFiles, so `{out_obj}` and
// friends substitute the path the file will actually be written to.
func (t *Task) expandDescAndCommand() error {
	for _, k := range []string{"desc", "command"} {
		v, err := t.config.Get(k)
		if err != nil {
			continue
		}
		expanded, err := Expand(t.config, v)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", k, err)
		}
		t.config.Set(k, expanded)
	}
	return nil
}

// resolveInOutFiles joins every in_* field under task_dir and every out_*
// field under build_dir, collecting the results into t.inFiles/t.outFiles
// AND writing the absolute paths back into the config itself — so that a
// later `{out_obj}` macro in `command` expands to the path the file will
// actually end up at, not the bare relative name the build script wrote
// (spec §4.3 step 3: "prefix + swap(abs_path) != abs(prefix + swap(path))",
// out-of-tree builds resolve relative to build_dir, not task_dir). The
// `in_depfile` field is a special case: it is joined under build_dir like
// an out_* field, but only added to in_files if the file already exists —
// on a first build the depfile hasn't been emitted yet.
//
// Grounded on original_source/hancho.py's task_init join_dir closure,
// which reassigns self.config[key] in place for the same reason.
func (t *Task) resolveInOutFiles() error {
	taskDir, _ := t.config.Get("task_dir")
	taskDirStr, _ := taskDir.(string)
	buildDir, _ := t.config.Get("build_dir")
	buildDirStr, _ := buildDir.(string)

	var inFiles, outFiles []string
	for _, k := range t.config.Keys() {
		v, err := t.config.Get(k)
		if err != nil {
			continue
		}
		switch {
		case k == "in_depfile":
			rel, ok := v.(string)
			if !ok || rel == "" {
				continue
			}
			dep := JoinPath(buildDirStr, rel)
			t.config.Set(k, dep)
			if FileExists(dep) {
				inFiles = append(inFiles, dep)
			}
		case len(k) >= 3 && k[:3] == "in_":
			joined := joinEach(taskDirStr, Flatten(v))
			t.config.Set(k, rewrapJoined(v, joined))
			inFiles = append(inFiles, joined...)
		case len(k) >= 4 && k[:4] == "out_":
			joined := joinEach(buildDirStr, Flatten(v))
			t.config.Set(k, rewrapJoined(v, joined))
			outFiles = append(outFiles, joined...)
		}
	}
	t.inFiles = inFiles
	t.outFiles = outFiles
	return nil
}

// rewrapJoined returns joined in the same scalar-vs-list shape as orig, so
// that overwriting the config value doesn't turn a plain string field into
// a single-element list (which would change how `{field}` stringifies).
func rewrapJoined(orig any, joined []string) any {
	if _, isList := orig.([]any); !isList {
		if _, isList := orig.([]string); !isList && len(joined) <= 1 {
			if len(joined) == 0 {
				return nil
			}
			return joined[0]
		}
	}
	out := make([]any, len(joined))
	for i, s := range joined {
		out[i] = s
	}
	return out
}

func joinEach(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = JoinPath(base, p)
	}
	return out
}

// sanityCheck enforces spec §4.3's TASK_INIT invariants: task_dir exists,
// every in_file exists, and every out_file resolves under root_dir.
func (t *Task) sanityCheck() error {
	taskDir, _ := t.config.Get("task_dir")
	if taskDirStr, ok := taskDir.(string); ok {
		if info, err := os.Stat(taskDirStr); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: task_dir %q does not exist", ErrFileNotFound, taskDirStr)
		}
	}
	for _, f := range t.inFiles {
		if !FileExists(f) {
			return fmt.Errorf("%w: in_file %q does not exist", ErrFileNotFound, f)
		}
	}
	rootDir, _ := t.config.Get("root_dir")
	rootDirStr, _ := rootDir.(string)
	if rootDirStr != "" {
		for _, f := range t.outFiles {
			if !UnderDir(f, rootDirStr) {
				return fmt.Errorf("%w: out_file %q escapes root_dir %q", ErrValue, f, rootDirStr)
			}
		}
	}
	return nil
}

// mkdirs creates the parent directory of every out_file, skipped entirely
// under -n (dry-run).
func (t *Task) mkdirs() error {
	seen := map[string]bool{}
	for _, f := range t.outFiles {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir %q: %w", dir, err)
		}
	}
	return nil
}
