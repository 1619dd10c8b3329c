package hancho

import (
	"context"
	"fmt"
)

// needsRerun is the staleness oracle (spec §4.3, §6): an ordered chain of
// rules, each returning a non-empty reason the moment it fires. Earlier
// rules short-circuit later ones, and every mtime comparison uses >=, not
// >, per spec's same-second-mtime rule "ties favor rerunning".
//
// Grounded on original_source/hancho.py's needs_rerun (the ordered
// early-return chain is carried over verbatim; mtime reads go through
// paths.go's MTime/atomic counter instead of a module-level dict cache).
func (t *Task) needsRerun(ctx context.Context) string {
	if Force(ctx) {
		return "--force"
	}
	if len(t.inFiles) == 0 {
		return "no inputs"
	}
	if len(t.outFiles) == 0 {
		return "no outputs"
	}

	minOut := int64(-1)
	for _, f := range t.outFiles {
		m := MTime(f)
		if m < 0 {
			return fmt.Sprintf("missing output %q", f)
		}
		if minOut < 0 || m < minOut {
			minOut = m
		}
	}

	if EngineSourceMTime() >= minOut {
		return "build engine changed"
	}

	for _, f := range t.inFiles {
		if MTime(f) >= minOut {
			return fmt.Sprintf("input %q changed", f)
		}
	}

	for _, f := range t.loadedFiles {
		if MTime(f) >= minOut {
			return fmt.Sprintf("build script %q changed", f)
		}
	}

	if deps, err := t.depfileDeps(); err == nil {
		for _, f := range deps {
			if MTime(f) >= minOut {
				return fmt.Sprintf("depfile dependency %q changed", f)
			}
		}
	}

	return ""
}

// depfileDeps loads and parses the task's depfile, if it declares one
// (config fields "in_depfile" and optionally "depformat"), returning the
// dependency paths it lists. in_depfile is joined under build_dir, like
// any other out_*-style path (spec §4.3 step 3); the paths listed inside
// the depfile itself are resolved against task_dir, since that's the
// working directory the compiler ran in when it wrote them.
func (t *Task) depfileDeps() ([]string, error) {
	df, err := t.config.Get("in_depfile")
	if err != nil {
		return nil, nil
	}
	rel, ok := df.(string)
	if !ok || rel == "" {
		return nil, nil
	}
	buildDir, _ := t.config.Get("build_dir")
	buildDirStr, _ := buildDir.(string)
	path := JoinPath(buildDirStr, rel)
	if !FileExists(path) {
		return nil, nil // not yet produced by a prior run; nothing to compare against
	}
	taskDir, _ := t.config.Get("task_dir")
	taskDirStr, _ := taskDir.(string)
	format := "gcc"
	if f, err := t.config.Get("depformat"); err == nil {
		if s, ok := f.(string); ok && s != "" {
			format = s
		}
	}
	return ParseDepfile(path, taskDirStr, format)
}
