package interp

import "github.com/cageshell/cageshell/command"

// resolution is what `resolve` found for a command name: exactly one of
// Func/Builtin/External is set, or none (not found).
type resolution struct {
	fn       *funcDecl
	builtin  builtinFunc
	external command.Command
}

// resolve implements spec.md §4.7's command lookup order: a shell
// function shadows a builtin, which shadows the external command
// registry; nothing found means exit 127.
func (st *State) resolve(name string) resolution {
	if fd, ok := st.lookupFunc(name); ok {
		return resolution{fn: fd}
	}
	if b, ok := builtins[name]; ok {
		return resolution{builtin: b}
	}
	if st.Commands != nil {
		if c, ok := st.Commands.Lookup(name); ok {
			return resolution{external: c}
		}
	}
	return resolution{}
}

func (r resolution) found() bool {
	return r.fn != nil || r.builtin != nil || r.external != nil
}
