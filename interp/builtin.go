package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/syntax"
)

// parseSource parses a chunk of script text for `eval`/`source`, tagging
// it distinctly from the top-level script name for error messages.
func parseSource(src string) (*syntax.File, error) {
	return syntax.Parse(src, "eval")
}

func echoUnescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(s[i])
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// builtinFunc is one internal shell builtin: a state-mutating operation
// that, unlike a command.Command, runs in-process against the live State
// rather than a sandboxed Context. Grounded on the builtin dispatch table
// teacherref/interp/runner.go builds over its internal handler functions.
type builtinFunc func(st *State, args []string) exitResult

// builtins is the fixed set of control/state builtins every script can
// call regardless of what the embedder registered into the external
// command.Registry (spec.md §4.4).
var builtins = map[string]builtinFunc{
	":":        biTrue,
	"true":     biTrue,
	"false":    biFalse,
	"exit":     biExit,
	"break":    biBreak,
	"continue": biContinue,
	"return":   biReturn,
	"eval":     biEval,
	"export":   biExport,
	"readonly": biReadonly,
	"local":    biLocal,
	"declare":  biDeclare,
	"typeset":  biDeclare,
	"set":      biSet,
	"shift":    biShift,
	"unset":    biUnset,
	"wait":     biWait,
	"cd":       biCd,
	"pwd":      biPwd,
	"source":   biSource,
	".":        biSource,
	"type":     biType,
	"command":  biCommand,
	"test":     biTest,
	"[":        biTestBracket,
	"echo":     biEcho,
	"printf":   biPrintf,
}

func biTrue(st *State, args []string) exitResult  { return normalResult(0) }
func biFalse(st *State, args []string) exitResult { return normalResult(1) }

func biExit(st *State, args []string) exitResult {
	code := st.LastExit
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return exitResult{code: code & 0xff, kind: ctrlExit}
}

func biBreak(st *State, args []string) exitResult {
	return exitResult{code: 0, kind: ctrlBreak, loopN: loopCount(args)}
}

func biContinue(st *State, args []string) exitResult {
	return exitResult{code: 0, kind: ctrlContinue, loopN: loopCount(args)}
}

func loopCount(args []string) int {
	if len(args) == 0 {
		return 1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func biReturn(st *State, args []string) exitResult {
	code := st.LastExit
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return exitResult{code: code & 0xff, kind: ctrlReturn}
}

// biEval re-lexes and runs its arguments as a new chunk of script in the
// current scope, per spec.md §4.4.
func biEval(st *State, args []string) exitResult {
	src := strings.Join(args, " ")
	f, err := parseSource(src)
	if err != nil {
		fmt.Fprintf(st.Stderr, "eval: %v\n", err)
		return normalResult(1)
	}
	return st.runStmts(f.Stmts)
}

func biExport(st *State, args []string) exitResult {
	if len(args) == 0 {
		var names []string
		st.Each(func(name string, v expand.Variable) bool {
			if v.Attrs.Exported {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(st.Stdout, "declare -x %s\n", n)
		}
		return normalResult(0)
	}
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := st.Get(name)
		if !ok {
			v = expand.Variable{Kind: expand.String}
		}
		if hasVal {
			v.Kind = expand.String
			v.Str = val
		}
		v.Attrs.Exported = true
		if err := st.Set(name, v); err != nil {
			fmt.Fprintf(st.Stderr, "export: %v\n", err)
			return normalResult(1)
		}
	}
	return normalResult(0)
}

func biReadonly(st *State, args []string) exitResult {
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := st.Get(name)
		if !ok {
			v = expand.Variable{Kind: expand.String}
		}
		if hasVal {
			v.Kind = expand.String
			v.Str = val
		}
		v.Attrs.ReadOnly = true
		st.SetLocal(name, v)
	}
	return normalResult(0)
}

func biLocal(st *State, args []string) exitResult {
	for _, a := range args {
		name, val, hasVal := strings.Cut(a, "=")
		v := expand.Variable{Kind: expand.String}
		if hasVal {
			v.Str = val
		}
		st.SetLocal(name, v)
	}
	return normalResult(0)
}

// biDeclare implements `declare`/`typeset` with the attribute flags
// spec.md §9 supplements from original_source's declare implementation:
// -x export, -r readonly, -l/-u case folding, -a/-A array kind, -g global.
func biDeclare(st *State, args []string) exitResult {
	var (
		exported, readonly, lower, upper, array, assoc, global bool
		rest                                                    []string
	)
	for _, a := range args {
		if !strings.HasPrefix(a, "-") || a == "-" {
			rest = append(rest, a)
			continue
		}
		for _, c := range a[1:] {
			switch c {
			case 'x':
				exported = true
			case 'r':
				readonly = true
			case 'l':
				lower = true
			case 'u':
				upper = true
			case 'a':
				array = true
			case 'A':
				assoc = true
			case 'g':
				global = true
			}
		}
	}
	setter := st.SetLocal
	if global {
		setter = func(name string, v expand.Variable) {
			g := st.top
			for g.parent != nil {
				g = g.parent
			}
			if old, ok := g.vars[name]; ok && old.Attrs.ReadOnly {
				return
			}
			g.vars[name] = v
		}
	}
	for _, a := range rest {
		name, val, hasVal := strings.Cut(a, "=")
		v, ok := st.Get(name)
		if !ok {
			v = expand.Variable{Kind: expand.String}
		}
		if hasVal {
			v.Kind = expand.String
			v.Str = val
		}
		if array && v.Kind != expand.Indexed {
			v.Kind = expand.Indexed
			v.Indx = map[int]string{}
		}
		if assoc && v.Kind != expand.Associative {
			v.Kind = expand.Associative
			v.Assoc = map[string]string{}
		}
		v.Attrs.Exported = v.Attrs.Exported || exported
		v.Attrs.ReadOnly = v.Attrs.ReadOnly || readonly
		v.Attrs.Lowercase = v.Attrs.Lowercase || lower
		v.Attrs.Uppercase = v.Attrs.Uppercase || upper
		setter(name, v)
	}
	return normalResult(0)
}

func biSet(st *State, args []string) exitResult {
	var longOpt *bool // set by "-o"/"+o": the next argument names the option
	for _, a := range args {
		if longOpt != nil {
			if a == "pipefail" {
				st.Options.Pipefail = *longOpt
			}
			longOpt = nil
			continue
		}
		enable := strings.HasPrefix(a, "-")
		if !enable && !strings.HasPrefix(a, "+") {
			continue
		}
		for _, c := range a[1:] {
			switch c {
			case 'e':
				st.Options.Errexit = enable
			case 'u':
				st.Options.Nounset = enable
			case 'x':
				st.Options.Xtrace = enable
			case 'f':
				st.Options.NoGlob = enable
			case 'o':
				// long form: the next argument names the option; only
				// "pipefail" is recognized.
				e := enable
				longOpt = &e
			}
		}
		if strings.Contains(a, "pipefail") {
			st.Options.Pipefail = enable
		}
	}
	return normalResult(0)
}

func biShift(st *State, args []string) exitResult {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	if n < 0 || n > len(st.Positional) {
		return normalResult(1)
	}
	st.Positional = st.Positional[n:]
	return normalResult(0)
}

func biUnset(st *State, args []string) exitResult {
	for _, a := range args {
		if err := st.Unset(a); err != nil {
			fmt.Fprintf(st.Stderr, "unset: %v\n", err)
			return normalResult(1)
		}
	}
	return normalResult(0)
}

// biWait blocks on every still-running background job, per spec.md §9's
// decision that `wait` with no arguments waits for all of them.
func biWait(st *State, args []string) exitResult {
	st.bgMu.Lock()
	jobs := append([]*bgJob(nil), st.bgJobs...)
	st.bgMu.Unlock()

	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			<-j.done
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	if len(jobs) > 0 {
		code = jobs[len(jobs)-1].exit.code
	}
	return normalResult(code)
}

func biCd(st *State, args []string) exitResult {
	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	} else if v, ok := st.Get("HOME"); ok {
		dir = v.Str
	}
	if st.FS == nil {
		return normalResult(1)
	}
	if err := st.FS.Chdir(dir); err != nil {
		fmt.Fprintf(st.Stderr, "cd: %v\n", err)
		return normalResult(1)
	}
	return normalResult(0)
}

func biPwd(st *State, args []string) exitResult {
	if st.FS == nil {
		return normalResult(1)
	}
	fmt.Fprintln(st.Stdout, st.FS.Getwd())
	return normalResult(0)
}

// biSource reads a script from the sandboxed filesystem and runs it in the
// current scope (spec.md §4.4's "." / "source").
func biSource(st *State, args []string) exitResult {
	if len(args) == 0 || st.FS == nil {
		return normalResult(1)
	}
	data, err := st.FS.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(st.Stderr, "source: %v\n", err)
		return normalResult(1)
	}
	f, perr := parseSource(string(data))
	if perr != nil {
		fmt.Fprintf(st.Stderr, "source: %v\n", perr)
		return normalResult(1)
	}
	savedArgs := st.Positional
	if len(args) > 1 {
		st.Positional = args[1:]
	}
	res := st.runStmts(f.Stmts)
	st.Positional = savedArgs
	return res
}

func biType(st *State, args []string) exitResult {
	code := 0
	for _, name := range args {
		r := st.resolve(name)
		switch {
		case r.fn != nil:
			fmt.Fprintf(st.Stdout, "%s is a function\n", name)
		case r.builtin != nil:
			fmt.Fprintf(st.Stdout, "%s is a shell builtin\n", name)
		case r.external != nil:
			fmt.Fprintf(st.Stdout, "%s is %s\n", name, name)
		default:
			fmt.Fprintf(st.Stderr, "%s: not found\n", name)
			code = 1
		}
	}
	return normalResult(code)
}

// biCommand bypasses function lookup ("command name ...") per spec.md
// §4.7; only the builtin/external tiers apply.
func biCommand(st *State, args []string) exitResult {
	if len(args) == 0 {
		return normalResult(0)
	}
	name, rest := args[0], args[1:]
	if b, ok := builtins[name]; ok {
		return b(st, rest)
	}
	if st.Commands != nil {
		if c, ok := st.Commands.Lookup(name); ok {
			return st.runExternal(c, args)
		}
	}
	fmt.Fprintf(st.Stderr, "%s: command not found\n", name)
	return normalResult(127)
}

func biTest(st *State, args []string) exitResult {
	return normalResult(oneIf(!evalTestArgv(st, args)))
}

func biTestBracket(st *State, args []string) exitResult {
	if len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	return biTest(st, args)
}

// evalTestArgv implements the POSIX `test`/`[` argument grammar directly
// over an already-expanded argv, independent of the `[[ ]]` parser's
// TestExpr tree (spec.md §4.2).
func evalTestArgv(st *State, args []string) bool {
	switch len(args) {
	case 0:
		return false
	case 1:
		return args[0] != ""
	case 2:
		if args[0] == "!" {
			return !evalTestArgv(st, args[1:])
		}
		return st.evalUnaryTest(args[0], args[1])
	case 3:
		l, op, r := args[0], args[1], args[2]
		switch op {
		case "=", "==":
			return l == r
		case "!=":
			return l != r
		case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
			ln, lerr := expand.EvalArithm(l, st)
			rn, rerr := expand.EvalArithm(r, st)
			if lerr != nil || rerr != nil {
				return false
			}
			switch op {
			case "-eq":
				return ln == rn
			case "-ne":
				return ln != rn
			case "-lt":
				return ln < rn
			case "-le":
				return ln <= rn
			case "-gt":
				return ln > rn
			case "-ge":
				return ln >= rn
			}
		}
		return false
	default:
		return false
	}
}

func biEcho(st *State, args []string) exitResult {
	newline := true
	escapes := false
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") && len(args[i]) > 1 {
		opt := args[i][1:]
		valid := true
		for _, c := range opt {
			if c != 'n' && c != 'e' && c != 'E' {
				valid = false
			}
		}
		if !valid {
			break
		}
		if strings.Contains(opt, "n") {
			newline = false
		}
		if strings.Contains(opt, "e") {
			escapes = true
		}
		if strings.Contains(opt, "E") {
			escapes = false
		}
		i++
	}
	out := strings.Join(args[i:], " ")
	if escapes {
		out = echoUnescape(out)
	}
	if newline {
		out += "\n"
	}
	fmt.Fprint(st.Stdout, out)
	return normalResult(0)
}

// biPrintf implements a small, commonly used subset of printf(1):
// %s/%d/%q/%% and backslash escapes, recycling the format over leftover
// arguments the way POSIX printf does.
func biPrintf(st *State, args []string) exitResult {
	if len(args) == 0 {
		return normalResult(1)
	}
	format := echoUnescape(args[0])
	rest := args[1:]

	apply := func(format string, rest []string) []string {
		var sb strings.Builder
		ai := 0
		for i := 0; i < len(format); i++ {
			c := format[i]
			if c != '%' || i+1 >= len(format) {
				sb.WriteByte(c)
				continue
			}
			i++
			switch format[i] {
			case '%':
				sb.WriteByte('%')
			case 's':
				if ai < len(rest) {
					sb.WriteString(rest[ai])
					ai++
				}
			case 'd':
				if ai < len(rest) {
					n, _ := strconv.Atoi(rest[ai])
					sb.WriteString(strconv.Itoa(n))
					ai++
				}
			case 'q':
				if ai < len(rest) {
					sb.WriteString(strconv.Quote(rest[ai]))
					ai++
				}
			default:
				sb.WriteByte('%')
				sb.WriteByte(format[i])
			}
		}
		rest = rest[ai:]
		fmt.Fprint(st.Stdout, sb.String())
		return rest
	}

	if len(rest) == 0 {
		apply(format, rest)
		return normalResult(0)
	}
	for len(rest) > 0 {
		before := len(rest)
		rest = apply(format, rest)
		if len(rest) == before {
			break
		}
	}
	return normalResult(0)
}
