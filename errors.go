package hancho

import "errors"

// Sentinel error kinds, per spec §7. Wrap these with fmt.Errorf("...: %w", ErrX)
// so callers can distinguish kinds with errors.Is while still getting a
// human-readable message.
var (
	// ErrKeyMissing is raised by Config.Get when a key is absent on the
	// whole parent chain. Caught internally during macro evaluation
	// (TEFINAE); propagates everywhere else.
	ErrKeyMissing = errors.New("key missing")

	// ErrRecursion is raised when macro expansion exceeds MaxExpandDepth.
	ErrRecursion = errors.New("macro expansion recursion limit exceeded")

	// ErrFileNotFound covers a missing task_dir, missing input file, or
	// missing loader path.
	ErrFileNotFound = errors.New("file not found")

	// ErrNameCollision is raised when two command-bearing Tasks claim the
	// same out_file.
	ErrNameCollision = errors.New("output file claimed by another task")

	// ErrCancelled marks a Task that was cancelled because an awaited
	// input ended in CANCELLED, FAILED, or BROKEN.
	ErrCancelled = errors.New("task cancelled")

	// ErrCommandFailed marks a non-zero subprocess return code (unless
	// should_fail inverts the interpretation).
	ErrCommandFailed = errors.New("command failed")

	// ErrValue covers over-capacity job requests, malformed macro
	// expressions, bad builtin arguments, unknown depfile formats, and
	// out_files that escape root_dir.
	ErrValue = errors.New("invalid value")
)
