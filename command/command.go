// Package command defines the external-command plugin surface: the
// small, sandboxed coreutils subset (cat, ls, grep, ...) that the
// interpreter falls back to once function and builtin resolution both
// miss (spec.md §4.7).
package command

import (
	"context"
	"sort"
	"sync"

	"github.com/cageshell/cageshell/vfs"
)

// Result is the outcome of running one external command: captured
// stdout/stderr text plus an exit code, never a Go error for an ordinary
// command failure (spec.md §7 reserves Go errors for host-side faults).
//
// Grounded on `original_source/src/commands/types.rs`'s CommandResult.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success builds a Result for a command that produced stdout and exited
// zero.
func Success(stdout string) Result {
	return Result{Stdout: stdout, ExitCode: 0}
}

// Failure builds a Result for a command that wrote to stderr and exited
// non-zero.
func Failure(stderr string, code int) Result {
	if code == 0 {
		code = 1
	}
	return Result{Stderr: stderr, ExitCode: code}
}

// Context is everything a Command needs to run: its argv, stdin text,
// working directory, a snapshot of the environment, and the sandboxed
// filesystem it's allowed to touch. Grounded on
// `original_source/src/commands/types.rs`'s CommandContext; FetchFn
// supplements it per spec.md §9 so a command can reach the network through
// the interpreter's allow-listed fetcher. Re-entering the interpreter
// itself (`eval`, `source`, `.`) is a builtin concern, not a Command one:
// those run with direct access to the full `*interp.State` and never go
// through this Context, so there is no matching ExecFn here.
type Context struct {
	Ctx   context.Context
	Args  []string
	Stdin string
	Cwd   string
	Env   map[string]string
	FS    vfs.FileSystem

	// FetchFn lets a command (e.g. a sandboxed curl) perform network
	// access through the interpreter's allow-listed fetcher instead of
	// reaching the network directly; nil means network access is
	// disabled for this invocation.
	FetchFn func(ctx context.Context, method, url string, body []byte) ([]byte, int, error)
}

// Command is one external command implementation, analogous to a single
// coreutil binary. Grounded on
// `original_source/src/commands/types.rs`'s Command trait, with the
// async fn made synchronous since this interpreter does not run on an
// async runtime.
type Command interface {
	Name() string
	Execute(ctx Context) Result
}

// Registry looks up registered Commands by name, the last stop in the
// resolution chain spec.md §4.7 defines (function > builtin > registry >
// exit 127). Grounded on
// `original_source/src/commands/registry.rs`'s CommandRegistry.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd, keyed by its own Name(); a later Register with the
// same name replaces the earlier one.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name()] = cmd
}

// Lookup returns the command registered under name, if any.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// Names returns every registered command name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
