package hancho

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseDepfile reads a compiler-emitted dependency file and returns the
// paths it lists (spec §4.3 step 3, §6 "Depfile formats"). format is "gcc"
// or "msvc".
//
// gcc: whitespace-split; the first token (the target) is dropped, as are
// literal line-continuation backslashes; the remainder are paths relative
// to taskDir.
//
// msvc: the file is JSON shaped like {"Data": {"Includes": [...]}}; the
// Includes entries are returned cleaned; a relative entry is not joined to
// taskDir.
func ParseDepfile(path, taskDir, format string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	switch format {
	case "", "gcc":
		return parseGCCDepfile(string(data), taskDir), nil
	case "msvc":
		return parseMSVCDepfile(data)
	default:
		return nil, fmt.Errorf("%w: invalid depformat %q", ErrValue, format)
	}
}

func parseGCCDepfile(contents, taskDir string) []string {
	fields := strings.Fields(contents)
	if len(fields) == 0 {
		return nil
	}
	fields = fields[1:] // drop the target token
	var out []string
	for _, f := range fields {
		if f == "\\" {
			continue
		}
		out = append(out, JoinPath(taskDir, f))
	}
	return out
}

type msvcDepfile struct {
	Data struct {
		Includes []string `json:"Includes"`
	} `json:"Data"`
}

func parseMSVCDepfile(data []byte) ([]string, error) {
	var parsed msvcDepfile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parsing msvc depfile: %v", ErrValue, err)
	}
	out := make([]string, len(parsed.Data.Includes))
	for i, inc := range parsed.Data.Includes {
		if filepath.IsAbs(inc) {
			out[i] = inc
		} else {
			out[i] = filepath.Clean(inc)
		}
	}
	return out, nil
}
