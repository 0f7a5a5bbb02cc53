package interp

import (
	"context"
	"io"
	"sync"

	"github.com/cageshell/cageshell/command"
	"github.com/cageshell/cageshell/syntax"
	"github.com/cageshell/cageshell/vfs"
)

// Options holds the shell's boolean mode switches; the `set` builtin
// toggles all of them except GlobStar (spec.md §4.6/§9).
type Options struct {
	Errexit  bool // set -e: a failing simple command exits the shell
	Nounset  bool // set -u: referencing an unset parameter is an error
	Pipefail bool // set -o pipefail: a pipeline's status is its last non-zero stage
	Xtrace   bool // set -x: trace each simple command before running it
	NoGlob   bool // set -f: disable pathname expansion
	GlobStar bool // enable extglob-style alternation; no builtin sets it
}

// funcDecl is a named function binding holding its body statement, kept
// distinct from builtins and the external registry for resolution
// order (spec.md §4.7).
type funcDecl struct {
	body *syntax.Stmt
}

// bgJob tracks one `cmd &` background job so `wait` can block on it. Grounded on teacherref/interp/api.go's bgProc.
type bgJob struct {
	id   int
	done chan struct{}
	exit exitResult
}

// State is the live interpreter: variable scopes, functions, the
// resolution registry, the sandboxed filesystem, and I/O streams for the
// statement currently executing. One State is created per Exec call by
// the Interpreter (api.go); nested subshells get a forked copy.
//
// Grounded on teacherref/interp/api.go's Runner, split so that the
// scope-stack bookkeeping lives in vars.go and the tree-walk lives in
// exec.go.
type State struct {
	top       *scope
	functions map[string]*funcDecl

	Positional []string
	ScriptName string

	LastExit  int
	LastBgPID int

	Options Options

	FS       vfs.FileSystem
	Commands *command.Registry
	Fetch    FetchFunc

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	limits *limitCounters

	// errexitSuppressed counts nested condition/&&/||/!-exempt contexts
	// currently being evaluated (spec.md §4.6 exemptions (a)/(b)); a
	// nonzero depth tells errexitGuard to leave a non-zero status alone.
	errexitSuppressed int

	bgMu   sync.Mutex
	bgJobs []*bgJob
	nextBg int

	ctx context.Context
}

// FetchFunc performs one outbound network request on behalf of a
// script, gated by whatever AllowList the embedder configured; nil
// disables network access entirely (spec.md §9's CommandContext
// decision).
type FetchFunc func(ctx context.Context, method, url string, body []byte) ([]byte, int, error)

func newState(ctx context.Context) *State {
	st := &State{
		top:       newScope(nil),
		functions: make(map[string]*funcDecl),
		limits:    newLimitCounters(DefaultLimits()),
		ctx:       ctx,
	}
	return st
}

// lookupFunc returns the function named name, if one is defined.
func (st *State) lookupFunc(name string) (*funcDecl, bool) {
	fd, ok := st.functions[name]
	return fd, ok
}

func (st *State) defineFunc(name string, body *syntax.Stmt) {
	st.functions[name] = &funcDecl{body: body}
}
