package hancho

import "runtime"

// OS name constants matching runtime.GOOS, exposed to build scripts as the
// root config's host_os binding so commands can branch on platform without
// importing "runtime" themselves.
const (
	Darwin  = "darwin"
	Linux   = "linux"
	Windows = "windows"
)

// HostOS returns the current operating system (runtime.GOOS).
func HostOS() string { return runtime.GOOS }

// HostArch returns the current architecture (runtime.GOARCH).
func HostArch() string { return runtime.GOARCH }

// BinaryName appends the platform-specific executable suffix to name
// (".exe" on Windows, unchanged elsewhere) — used by build scripts
// computing out_files for a linked binary.
func BinaryName(name string) string {
	if runtime.GOOS == Windows {
		return name + ".exe"
	}
	return name
}
