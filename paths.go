package hancho

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// mtimeCalls is an advisory counter incremented on every stat made through
// MTime. Spec §5: "its value is advisory."
var mtimeCalls atomic.Int64

// MTimeCalls returns the number of stat calls made through MTime so far.
func MTimeCalls() int64 {
	return mtimeCalls.Load()
}

// ResetMTimeCalls zeroes the advisory stat counter. Tests call this between
// scenarios.
func ResetMTimeCalls() {
	mtimeCalls.Store(0)
}

// MTime returns the modification time of path as a Unix nanosecond
// timestamp, or -1 if the file does not exist or cannot be stat'd. Every
// call increments the advisory MTimeCalls() counter.
func MTime(path string) int64 {
	mtimeCalls.Add(1)
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.ModTime().UnixNano()
}

// FileExists reports whether path exists on disk (regular file or directory).
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// JoinPath joins base and rel the way Hancho's loader does: if rel is
// already absolute, it is returned cleaned and as-is (absolute paths are
// never re-rooted); otherwise it is joined under base and cleaned.
func JoinPath(base, rel string) string {
	if rel == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(base, rel))
}

// AbsPath returns an absolute, cleaned form of path, joined against the
// process's current working directory when relative.
func AbsPath(path string) (string, error) {
	return filepath.Abs(path)
}

// RelPath returns path expressed relative to base, using forward slashes
// regardless of platform (matches the teacher's path normalization in
// pk/paths_util.go and the original hancho.py's rel_path()).
func RelPath(path, base string) (string, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// SwapExt replaces the extension of path with newExt. newExt may or may not
// have a leading dot.
func SwapExt(path, newExt string) string {
	if newExt != "" && !strings.HasPrefix(newExt, ".") {
		newExt = "." + newExt
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}

// Stem returns the filename of path without its directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UnderDir reports whether path lies under dir (both must already be
// absolute and cleaned).
func UnderDir(path, dir string) bool {
	if dir == "" {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// Flatten recursively flattens nested []any (and []string) values into a
// single []string, dropping nil entries and stringifying scalars. It is the
// Go analogue of Hancho's flatten() builtin used to normalize in_*/out_*/
// command list fields that may be strings, lists, or nested lists.
func Flatten(v any) []string {
	var out []string
	flattenInto(v, &out)
	return out
}

func flattenInto(v any, out *[]string) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		if t != "" {
			*out = append(*out, t)
		}
	case []string:
		for _, e := range t {
			flattenInto(e, out)
		}
	case []any:
		for _, e := range t {
			flattenInto(e, out)
		}
	default:
		*out = append(*out, stringify(v))
	}
}
