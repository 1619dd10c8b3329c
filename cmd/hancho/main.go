// Command hancho locates a build script and runs it with `go run`.
//
// A Hancho build script is an ordinary Go program: it imports
// "github.com/hancho-build/hancho", declares its Tasks, registers them
// with an *hancho.App, and calls hancho.RunMain. This binary is a thin
// launcher, grounded on the teacher's cmd/bld/main.go scaffold pattern:
// resolve the project root, then `go run` the entry point there rather
// than reimplementing argument dispatch twice.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	buildFile := "build.hancho.go"
	dir := "."
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "hancho: -f requires an argument")
				return -1
			}
			buildFile = args[i+1]
			i++
		case "-C":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "hancho: -C requires an argument")
				return -1
			}
			dir = args[i+1]
			i++
		default:
			rest = append(rest, args[i])
		}
	}

	path := filepath.Join(dir, buildFile)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "hancho: cannot find build script %q: %v\n", path, err)
		return -1
	}

	goRunArgs := append([]string{"run", buildFile}, rest...)
	cmd := exec.Command("go", goRunArgs...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "hancho: %v\n", err)
		return -1
	}
	return 0
}
