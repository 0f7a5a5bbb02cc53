package interp

import (
	"os"
	"sort"
	"strconv"

	"github.com/cageshell/cageshell/expand"
)

// scope is one frame of the variable scope stack: the global frame, or
// one function-call frame pushed by a function invocation. Grounded on
// teacherref/interp/vars.go's parent-chaining mapEnviron, generalized so
// `local` can mark a frame boundary assignments without `local` skip over.
type scope struct {
	parent *scope
	vars   map[string]expand.Variable
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: make(map[string]expand.Variable)}
}

// lookup walks from s outward, returning the frame that owns name if any
// scope in the chain already has a binding for it.
func (s *scope) lookup(name string) (*scope, expand.Variable, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return cur, v, true
		}
	}
	return nil, expand.Variable{}, false
}

// Get implements expand.Environ, resolving the handful of positional and
// status pseudo-variables before falling back to the scope chain, so
// `expand.ExpandParam`'s generic resolveVar path picks them up for free.
func (st *State) Get(name string) (expand.Variable, bool) {
	switch name {
	case "?":
		return expand.Variable{Kind: expand.String, Str: strconv.Itoa(st.LastExit)}, true
	case "$":
		return expand.Variable{Kind: expand.String, Str: strconv.Itoa(os.Getpid())}, true
	case "!":
		return expand.Variable{Kind: expand.String, Str: strconv.Itoa(st.LastBgPID)}, true
	case "PWD":
		if st.FS != nil {
			return expand.Variable{Kind: expand.String, Str: st.FS.Getwd()}, true
		}
	}
	_, v, ok := st.top.lookup(name)
	return v, ok
}

// Set implements expand.WriteEnviron: an assignment overwrites whichever
// frame already owns the name, or creates it in the innermost frame if
// nothing does — matching bash's rule that a plain assignment inside a
// function only becomes function-local if the name was already made
// local with the `local`/`declare` builtin.
func (st *State) Set(name string, v expand.Variable) error {
	owner, existing, ok := st.top.lookup(name)
	if ok && existing.Attrs.ReadOnly {
		return &ReadOnlyError{Name: name}
	}
	if ok && existing.Attrs.Uppercase {
		v = withCase(v, true)
	} else if ok && existing.Attrs.Lowercase {
		v = withCase(v, false)
	}
	if ok {
		owner.vars[name] = v
		return nil
	}
	st.top.vars[name] = v
	return nil
}

// SetLocal binds name in the current (innermost) frame only, used by the
// `local` builtin and by function-parameter binding.
func (st *State) SetLocal(name string, v expand.Variable) {
	st.top.vars[name] = v
}

func withCase(v expand.Variable, upper bool) expand.Variable {
	if v.Kind != expand.String {
		return v
	}
	if upper {
		v.Str = toUpperASCII(v.Str)
	} else {
		v.Str = toLowerASCII(v.Str)
	}
	return v
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// Unset implements expand.WriteEnviron.
func (st *State) Unset(name string) error {
	owner, _, ok := st.top.lookup(name)
	if !ok {
		return nil
	}
	delete(owner.vars, name)
	return nil
}

// Each implements expand.ParamEnviron's enumeration requirement (used by
// forkSubshell to snapshot variables), visiting each visible name exactly
// once, innermost frame wins on shadowing.
func (st *State) Each(f func(name string, v expand.Variable) bool) {
	seen := make(map[string]bool)
	for cur := st.top; cur != nil; cur = cur.parent {
		names := make([]string, 0, len(cur.vars))
		for n := range cur.vars {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if seen[n] {
				continue
			}
			seen[n] = true
			if !f(n, cur.vars[n]) {
				return
			}
		}
	}
}

func (st *State) pushFrame() {
	st.top = newScope(st.top)
}

func (st *State) popFrame() {
	if st.top.parent != nil {
		st.top = st.top.parent
	}
}
