// Package interp is the tree-walking executor: it resolves and runs a
// parsed syntax.File against a sandboxed State (scope stack, vfs
// filesystem, command registry, network fetcher) under a resource budget,
// per spec.md §4.
//
// Grounded on teacherref/interp/api.go's Runner/functional-options
// constructor, generalized from an unsandboxed host-process shell to one
// that only ever touches the vfs/command/netfetch abstractions.
package interp

import (
	"context"
	"fmt"
	"io"

	"github.com/cageshell/cageshell/command"
	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/netfetch"
	"github.com/cageshell/cageshell/syntax"
	"github.com/cageshell/cageshell/vfs"
)

// Interpreter is the embeddable entry point: construct one with New and
// the desired Options, then call Exec once per script run.
type Interpreter struct {
	fs       vfs.FileSystem
	commands *command.Registry
	fetcher  *netfetch.Fetcher
	limits   Limits
	options  Options
	env      map[string]string
	stdout   io.Writer
	stderr   io.Writer
}

// Option configures an Interpreter at construction time, mirroring the
// teacher's RunnerOption pattern.
type Option func(*Interpreter)

// WithFileSystem sets the sandboxed filesystem every script runs against;
// New defaults to a fresh vfs.MemFS when this is omitted.
func WithFileSystem(fs vfs.FileSystem) Option {
	return func(i *Interpreter) { i.fs = fs }
}

// WithCommands sets the external-command registry; New defaults to one
// populated by command.RegisterCoreutils.
func WithCommands(r *command.Registry) Option {
	return func(i *Interpreter) { i.commands = r }
}

// WithNetwork enables host-gated outbound fetches for commands that ask
// for FetchFn; omitted means network access stays disabled.
func WithNetwork(f *netfetch.Fetcher) Option {
	return func(i *Interpreter) { i.fetcher = f }
}

// WithLimits overrides the default resource budget (spec.md §4.5).
func WithLimits(l Limits) Option {
	return func(i *Interpreter) { i.limits = l }
}

// WithOptions sets the initial `set -o`-style mode switches.
func WithOptions(o Options) Option {
	return func(i *Interpreter) { i.options = o }
}

// WithEnv seeds the initial exported environment (spec.md §3).
func WithEnv(env map[string]string) Option {
	return func(i *Interpreter) { i.env = env }
}

// WithStdio sets where script stdout/stderr are written; New defaults to
// io.Discard for both.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(i *Interpreter) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

// New builds an Interpreter; sensible defaults apply for any Option not
// given, so New() alone yields a usable, fully sandboxed interpreter.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		limits: DefaultLimits(),
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, o := range opts {
		o(i)
	}
	if i.fs == nil {
		i.fs = vfs.NewMemFS()
	}
	if i.commands == nil {
		i.commands = command.NewRegistry()
		command.RegisterCoreutils(i.commands)
	}
	return i
}

// ExecResult reports how a script finished: its final exit status, and
// any host-side fault (I/O, resource-limit, parse) that stopped it short.
type ExecResult struct {
	ExitCode int
	Err      error
}

// Exec parses and runs script with stdin as its standard input, returning
// once the script finishes, hits `exit`, or exceeds its resource budget.
func (i *Interpreter) Exec(ctx context.Context, script string, stdin io.Reader, args ...string) ExecResult {
	file, err := syntax.Parse(script, "script")
	if err != nil {
		return ExecResult{ExitCode: 2, Err: fmt.Errorf("parse error: %w", err)}
	}

	st := newState(ctx)
	st.FS = i.fs
	st.Commands = i.commands
	st.Options = i.options
	st.limits = newLimitCounters(i.limits)
	st.Stdin = stdin
	st.Stdout = i.stdout
	st.Stderr = i.stderr
	st.ScriptName = "script"
	st.Positional = args
	if i.fetcher != nil {
		st.Fetch = i.fetcher.FetchFn
	}
	for name, val := range i.env {
		_ = st.Set(name, expand.Variable{Kind: expand.String, Str: val, Attrs: expand.Attrs{Exported: true}})
	}

	res := st.Run(file)
	switch res.kind {
	case ctrlFatal:
		return ExecResult{ExitCode: res.code, Err: res.err}
	default:
		return ExecResult{ExitCode: res.code}
	}
}

// ExecArgv runs script the way a `cageshell -c script arg0 arg1...`
// invocation would, splitting argv into $0/positional parameters.
func (i *Interpreter) ExecArgv(ctx context.Context, script string, stdin io.Reader, argv []string) ExecResult {
	if len(argv) == 0 {
		return i.Exec(ctx, script, stdin)
	}
	return i.Exec(ctx, script, stdin, argv[1:]...)
}
