// cageshell is a CLI wrapper around package interp: run a sandboxed
// script from -c, a file argument, or stdin, and report its result either
// as plain stdout/stderr or as a single JSON object.
//
// Grounded on teacherref/cmd/gosh/main.go's flag handling, with the
// output-shape flags (--json, --cwd, --errexit) adapted from
// original_source/src/main.rs's CLI surface (spec.md §9 supplement: this
// spec's original ships a CLI the distilled spec.md never mentioned).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cageshell/cageshell/interp"
	"github.com/cageshell/cageshell/vfs"
)

func main() {
	os.Exit(run())
}

func run() int {
	script := flag.String("c", "", "command to be executed")
	errexit := flag.Bool("e", false, "exit immediately if a command exits non-zero")
	errexitLong := flag.Bool("errexit", false, "exit immediately if a command exits non-zero")
	cwd := flag.String("cwd", "", "working directory within the sandbox")
	asJSON := flag.Bool("json", false, "emit {stdout, stderr, exitCode} as JSON instead of writing directly")
	flag.Parse()

	src, stdinConsumed, err := readScript(*script)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var scriptStdin io.Reader = os.Stdin
	if stdinConsumed {
		scriptStdin = nil
	}

	fs := vfs.NewMemFS()
	if *cwd != "" {
		_ = fs.Mkdir(*cwd, 0o755, true)
		_ = fs.Chdir(*cwd)
	}

	var stdout, stderr bytes.Buffer
	it := interp.New(
		interp.WithFileSystem(fs),
		interp.WithStdio(&stdout, &stderr),
		interp.WithOptions(interp.Options{Errexit: *errexit || *errexitLong}),
	)

	positional := flag.Args()
	if *script == "" && len(positional) > 0 {
		positional = positional[1:] // Args()[0] was the script file path
	}
	res := it.Exec(context.Background(), src, scriptStdin, positional...)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(map[string]any{
			"stdout":   stdout.String(),
			"stderr":   stderr.String(),
			"exitCode": res.ExitCode,
		})
		return res.ExitCode
	}

	io.Copy(os.Stdout, &stdout)
	io.Copy(os.Stderr, &stderr)
	if res.Err != nil {
		fmt.Fprintln(os.Stderr, res.Err)
	}
	return res.ExitCode
}

// readScript returns the script source plus whether it consumed stdin to
// get it (in which case the script's own $0 stdin stays empty, matching
// original_source/src/main.rs's stdin-as-script fallback).
func readScript(c string) (string, bool, error) {
	if c != "" {
		return c, false, nil
	}
	if flag.NArg() > 0 {
		b, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			return "", false, fmt.Errorf("cannot read script file: %s: %w", flag.Arg(0), err)
		}
		return string(b), false, nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}
