package hancho

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxExpandDepth caps recursive re-expansion of a string, per spec §4.2.
const MaxExpandDepth = 20

// traceFunc, when non-nil, is invoked for every macro span resolved during
// expansion (spec.md §6 `--trace`). Set via SetTrace.
var traceFunc func(span, result string)

// SetTrace installs (or clears, with nil) a macro expansion trace hook.
func SetTrace(fn func(span, result string)) {
	traceFunc = fn
}

// Expand returns a deep copy of value with all string macros substituted
// using cfg as the evaluation environment (spec §4.1 Config.expand, §4.2).
//
// Expansion is structural: lists expand element-wise, maps expand both
// keys and values, a *Config is itself walked key-by-key (eagerly, which is
// sufficient for every caller in this engine — all of them expand a
// snapshotted Task config, never a live Config that will mutate after the
// read), and anything else is returned as-is.
func Expand(cfg *Config, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return ExpandString(cfg, v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			x, err := Expand(cfg, e)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			x, err := ExpandString(cfg, e)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ek, err := ExpandString(cfg, k)
			if err != nil {
				return nil, err
			}
			ev, err := Expand(cfg, v[k])
			if err != nil {
				return nil, err
			}
			out[ek] = ev
		}
		return out, nil
	case *Config:
		out := NewConfig()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			ev, err := Expand(cfg, val)
			if err != nil {
				return nil, err
			}
			out.Set(k, ev)
		}
		return out, nil
	default:
		return value, nil
	}
}

// ExpandString repeatedly substitutes `{...}` macro spans in s against cfg
// until a pass produces no change (the fixed-point contract of spec §4.2),
// capping at MaxExpandDepth passes.
func ExpandString(cfg *Config, s string) (string, error) {
	cur := s
	for depth := 0; ; depth++ {
		if depth >= MaxExpandDepth {
			return "", fmt.Errorf("%w: expanding %q", ErrRecursion, s)
		}
		next, changed, err := expandOnePass(cfg, cur)
		if err != nil {
			return "", err
		}
		if !changed {
			return next, nil
		}
		cur = next
	}
}

// expandOnePass scans cur for top-level `{...}` spans (braces inside quoted
// strings within the span are not span boundaries, and nested braces are
// balanced) and replaces each with the stringified result of evaluating its
// contents against cfg. TEFINAE: a span whose evaluation errors is emitted
// verbatim, unexpanded.
func expandOnePass(cfg *Config, s string) (string, bool, error) {
	var out strings.Builder
	changed := false
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		if runes[i] != '{' {
			out.WriteRune(runes[i])
			i++
			continue
		}
		end, ok := findMatchingBrace(runes, i)
		if !ok {
			// Unbalanced brace: emit verbatim, TEFINAE-style.
			out.WriteRune(runes[i])
			i++
			continue
		}
		span := string(runes[i+1 : end])
		result, err := evalExpr(cfg, span)
		if err != nil {
			// TEFINAE: emit the original span verbatim.
			out.WriteString(string(runes[i : end+1]))
			i = end + 1
			continue
		}
		str, err := stringifyAwaited(result)
		if err != nil {
			out.WriteString(string(runes[i : end+1]))
			i = end + 1
			continue
		}
		if traceFunc != nil {
			traceFunc(string(runes[i:end+1]), str)
		}
		out.WriteString(str)
		changed = true
		i = end + 1
	}
	return out.String(), changed, nil
}

// findMatchingBrace returns the index of the '}' matching the '{' at start,
// respecting nested braces and quoted string literals (so a dict literal
// `{'a': 1}` inside a macro span doesn't prematurely close the span).
func findMatchingBrace(runes []rune, start int) (int, bool) {
	depth := 0
	var inQuote rune
	for i := start; i < len(runes); i++ {
		c := runes[i]
		if inQuote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inQuote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// stringify renders a value the way macro substitution does: a list is
// joined with single spaces, nil becomes the empty string, everything else
// uses its natural representation.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(t, " ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// stringifyAwaited stringifies a macro evaluation result. Promise and Task
// values are awaited first (spec §4.2: "Awaitables inside Config values
// must be awaited before stringification"); by the time macros run
// (TASK_INIT), every Task this engine schedules has already completed
// AWAITING_INPUTS, so awaiting here is synchronous and immediate.
func stringifyAwaited(v any) (string, error) {
	switch t := v.(type) {
	case *Promise:
		resolved, err := t.Resolve()
		if err != nil {
			return "", err
		}
		return stringify(resolved), nil
	case *Task:
		if t.State() != StateFinished && t.State() != StateSkipped {
			return "", fmt.Errorf("%w: task %q has not completed", ErrValue, t.Name())
		}
		return stringify(anySlice(t.OutFiles())), nil
	default:
		return stringify(v), nil
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
