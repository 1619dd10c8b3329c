package hancho

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// builtins is the fixed table of macro functions every Config's evaluator
// can call, per spec §4.2: join_path, rel_path, swap_ext, stem, flatten,
// len, color, run_cmd, glob. join_path/rel_path/swap_ext/stem mirror
// pk/paths_util.go's path helpers; color is grounded on github.com/fatih/color
// (ANSI codes, same library the teacher uses for progress output); glob is
// grounded on doublestar.FilepathGlob the way compozy-compozy's
// engine/autoload/discoverer.go uses it.
var builtins = map[string]Callable{
	"join_path": fnJoinPath,
	"rel_path":  fnRelPath,
	"swap_ext":  fnSwapExt,
	"stem":      fnStem,
	"flatten":   fnFlatten,
	"len":       fnLen,
	"color":     fnColor,
	"run_cmd":   fnRunCmd,
	"glob":      fnGlob,
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrValue, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d: expected string, got %T", ErrValue, i, args[i])
	}
	return s, nil
}

func fnJoinPath(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: join_path(base, rel) needs 2 arguments", ErrValue)
	}
	base, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	rel, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	return JoinPath(base, rel), nil
}

func fnRelPath(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: rel_path(path, base) needs 2 arguments", ErrValue)
	}
	path, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	base, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	return RelPath(path, base)
}

func fnSwapExt(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: swap_ext(name, new_ext) needs 2 arguments", ErrValue)
	}
	newExt, err := argString(args, 1)
	if err != nil {
		return nil, err
	}
	switch name := args[0].(type) {
	case string:
		return SwapExt(name, newExt), nil
	case []any:
		out := make([]any, len(name))
		for i, n := range name {
			s, ok := n.(string)
			if !ok {
				return nil, fmt.Errorf("%w: swap_ext list element is not a string", ErrValue)
			}
			out[i] = SwapExt(s, newExt)
		}
		return out, nil
	case *Task:
		out := make([]any, len(name.OutFiles()))
		for i, f := range name.OutFiles() {
			out[i] = SwapExt(f, newExt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: swap_ext expects a string, list, or Task", ErrValue)
	}
}

func fnStem(args []any) (any, error) {
	s, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	return Stem(s), nil
}

func fnFlatten(args []any) (any, error) {
	if len(args) == 0 {
		return []any{}, nil
	}
	flat := Flatten(args[0])
	out := make([]any, len(flat))
	for i, s := range flat {
		out[i] = s
	}
	return out, nil
}

func fnLen(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: len() needs exactly 1 argument", ErrValue)
	}
	switch v := args[0].(type) {
	case string:
		return float64(len([]rune(v))), nil
	case []any:
		return float64(len(v)), nil
	case map[string]any:
		return float64(len(v)), nil
	default:
		return nil, fmt.Errorf("%w: len() of unsupported type %T", ErrValue, v)
	}
}

// fnColor converts an RGB triple to an ANSI escape sequence, or resets
// color when called with no arguments. Uses the same 24-bit SGR sequence
// github.com/fatih/color emits for color.RGB(), so output composed with
// fnColor and the engine's own colorized progress lines nests correctly.
func fnColor(args []any) (any, error) {
	if len(args) == 0 {
		return "\x1b[0m", nil
	}
	if len(args) != 3 {
		return nil, fmt.Errorf("%w: color() needs 0 or 3 arguments", ErrValue)
	}
	var rgb [3]int
	for i := range rgb {
		n, err := toNumber(args[i])
		if err != nil {
			return nil, err
		}
		rgb[i] = int(n)
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", rgb[0], rgb[1], rgb[2]), nil
}

// fnRunCmd runs a shell command synchronously and returns its trimmed
// combined output, the way original_source/hancho.py's run_cmd() does —
// used for macro expressions like `{run_cmd('git rev-parse HEAD')}`.
func fnRunCmd(args []any) (any, error) {
	cmdline, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(context.Background(), "sh", "-c", cmdline).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: run_cmd(%q): %v", ErrValue, cmdline, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// fnGlob expands a doublestar pattern into a list of matching paths. A
// relative pattern is resolved against the process's current working
// directory; macro expansion does not change directory first.
func fnGlob(args []any) (any, error) {
	pattern, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: glob(%q): %v", ErrValue, pattern, err)
	}
	out := make([]any, len(matches))
	for i, m := range matches {
		out[i] = m
	}
	return out, nil
}

// formatInt is a small helper kept for callers that want a plain base-10
// string instead of stringify's Python-flavored float formatting.
func formatInt(n int) string {
	return strconv.Itoa(n)
}
