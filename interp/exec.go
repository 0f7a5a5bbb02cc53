package interp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cageshell/cageshell/command"
	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/syntax"
)

// newExpander builds an Expander wired against this State: variable
// access, positional parameters, and the command-substitution/glob/tilde
// hooks the embedding interpreter alone can satisfy. Grounded on
// teacherref/interp/runner.go's fillExpandConfig, which does the same
// wiring against its own Runner.
func (st *State) newExpander() *expand.Expander {
	return &expand.Expander{
		Env:        st,
		Positional: st.Positional,
		ScriptName: st.ScriptName,
		NoGlob:     st.Options.NoGlob,
		GlobStar:   st.Options.GlobStar,
		CmdSubst:   st.runCmdSubst,
		Glob:       st.globFunc,
		HomeDir:    nil,
	}
}

func (st *State) globFunc(pattern string) ([]string, error) {
	if st.FS == nil {
		return nil, nil
	}
	return st.FS.Glob(pattern)
}

// runCmdSubst runs the statements of a $(...)/`...` body in a forked
// subshell and captures its stdout, trimming handled by the caller
// (expand.Expander.wordField).
func (st *State) runCmdSubst(stmts []*syntax.Stmt) (string, error) {
	child := st.forkSubshell()
	var buf bytes.Buffer
	child.Stdout = &buf
	res := child.runStmts(stmts)
	st.LastExit = res.code
	if res.kind == ctrlFatal {
		return buf.String(), res.err
	}
	return buf.String(), nil
}

// forkSubshell returns an independent State for "( ... )", command
// substitution, and every pipeline stage: a flattened snapshot of the
// current variables and a copy of the function table, so writes inside
// never propagate back to the parent, approximating the process fork the
// teacher's unsandboxed model and a real shell both rely on.
func (st *State) forkSubshell() *State {
	child := &State{
		top:        newScope(nil),
		functions:  make(map[string]*funcDecl, len(st.functions)),
		Positional: st.Positional,
		ScriptName: st.ScriptName,
		LastExit:   st.LastExit,
		LastBgPID:  st.LastBgPID,
		Options:    st.Options,
		FS:         st.FS,
		Commands:   st.Commands,
		Fetch:      st.Fetch,
		Stdin:      st.Stdin,
		Stdout:     st.Stdout,
		Stderr:     st.Stderr,
		limits:     st.limits,
		ctx:        st.ctx,
	}
	st.Each(func(name string, v expand.Variable) bool {
		child.top.vars[name] = v
		return true
	})
	for name, fn := range st.functions {
		child.functions[name] = fn
	}
	return child
}

// Run executes a parsed script top to bottom, used by the Interpreter's
// Exec method (api.go).
func (st *State) Run(f *syntax.File) exitResult {
	return st.runStmts(f.Stmts)
}

func (st *State) runStmts(stmts []*syntax.Stmt) exitResult {
	res := normalResult(0)
	for _, s := range stmts {
		res = st.runStmt(s)
		if res.kind != ctrlNone {
			return res
		}
	}
	return res
}

func (st *State) runStmt(s *syntax.Stmt) exitResult {
	if s.Background {
		return st.runBackground(s)
	}
	return st.runStmtSync(s)
}

// runBackground launches s in a goroutine against a forked subshell state
// and immediately returns status 0, recording a bgJob that `wait` (see
// builtin.go) can block on and that populates "$!".
func (st *State) runBackground(s *syntax.Stmt) exitResult {
	child := st.forkSubshell()
	job := &bgJob{done: make(chan struct{})}
	st.bgMu.Lock()
	st.nextBg++
	job.id = st.nextBg
	st.bgJobs = append(st.bgJobs, job)
	st.bgMu.Unlock()
	st.LastBgPID = job.id

	go func() {
		job.exit = child.runStmtSync(s)
		close(job.done)
	}()
	return normalResult(0)
}

func (st *State) runStmtSync(s *syntax.Stmt) exitResult {
	if err := st.countCommandLimit(); err != nil {
		return fatalResult(err)
	}

	x := st.newExpander()
	restore, err := st.applyRedirects(s.Redirs, x)
	if err != nil {
		return st.errexitGuard(fatalResult(err))
	}
	defer restore()

	if s.Negated {
		st.errexitSuppressed++
	}
	var res exitResult
	if call, ok := s.Cmd.(*syntax.CallExpr); ok {
		res = st.runCall(call, s.Assigns, x)
	} else {
		if len(s.Assigns) > 0 {
			if err := st.applyPermanentAssigns(s.Assigns, x); err != nil {
				if s.Negated {
					st.errexitSuppressed--
				}
				return fatalResult(err)
			}
		}
		res = st.runCommand(s.Cmd)
	}
	if s.Negated {
		st.errexitSuppressed--
	}

	if s.Negated && res.kind == ctrlNone {
		res.code = oneIf(res.code == 0)
	}
	st.LastExit = res.code
	if s.Negated {
		// A !-prefixed command never triggers errexit, regardless of its
		// (possibly inverted) resulting status.
		return res
	}
	return st.errexitGuard(res)
}

// errexitGuard converts an ordinary non-zero status into a ctrlExit
// unwind when `set -e` is active, per spec.md §4.6. It is a no-op while
// errexitSuppressed is held, i.e. while evaluating an if/while/until
// condition, the left operand of && or ||, or a !-negated command.
func (st *State) errexitGuard(res exitResult) exitResult {
	if st.Options.Errexit && st.errexitSuppressed == 0 && !res.errexitExempt &&
		res.kind == ctrlNone && res.code != 0 {
		res.kind = ctrlExit
	}
	return res
}

// runStmtsNoErrexit runs stmts with errexitGuard suppressed for their
// entire subtree, per spec.md §4.6 exemptions (a)/(b).
func (st *State) runStmtsNoErrexit(stmts []*syntax.Stmt) exitResult {
	st.errexitSuppressed++
	defer func() { st.errexitSuppressed-- }()
	return st.runStmts(stmts)
}

// runStmtNoErrexit is runStmtsNoErrexit for a single statement, used for
// the left operand of && / ||.
func (st *State) runStmtNoErrexit(s *syntax.Stmt) exitResult {
	st.errexitSuppressed++
	defer func() { st.errexitSuppressed-- }()
	return st.runStmt(s)
}

func (st *State) countCommandLimit() error {
	if st.limits == nil {
		return nil
	}
	if err := st.limits.countCommand(); err != nil {
		return err
	}
	return nil
}

func (st *State) runCommand(cmd syntax.Command) exitResult {
	switch c := cmd.(type) {
	case *syntax.CallExpr:
		return st.runCall(c, nil, st.newExpander())
	case *syntax.Pipeline:
		return st.runPipeline(c)
	case *syntax.BinaryList:
		return st.runBinaryList(c)
	case *syntax.IfClause:
		return st.runIf(c)
	case *syntax.WhileClause:
		return st.runWhile(c)
	case *syntax.ForClause:
		return st.runFor(c)
	case *syntax.CaseClause:
		return st.runCase(c)
	case *syntax.Block:
		return st.runStmts(c.Stmts)
	case *syntax.Subshell:
		return st.runSubshell(c)
	case *syntax.FuncDecl:
		return st.runFuncDecl(c)
	case *syntax.ArithmCmd:
		return st.runArithmCmd(c)
	case *syntax.TestClause:
		ok, err := st.evalTest(st.newExpander(), c.X)
		if err != nil {
			return fatalResult(err)
		}
		return normalResult(oneIf(!ok))
	}
	return normalResult(0)
}

// runCall expands and runs one simple command: leading assignments,
// command-name/argument expansion, then resolution in the function >
// builtin > external order (resolve.go).
func (st *State) runCall(c *syntax.CallExpr, assigns []*syntax.Assign, x *expand.Expander) exitResult {
	if len(c.Args) == 0 {
		if err := st.applyPermanentAssigns(assigns, x); err != nil {
			return fatalResult(err)
		}
		return normalResult(0)
	}

	var saved map[string]expand.Variable
	var hadSaved map[string]bool
	if len(assigns) > 0 {
		saved = make(map[string]expand.Variable)
		hadSaved = make(map[string]bool)
		for _, a := range assigns {
			if prev, ok := st.Get(a.Name); ok {
				saved[a.Name] = prev
				hadSaved[a.Name] = true
			}
			if err := st.applyAssign(a, x); err != nil {
				return fatalResult(err)
			}
		}
		defer func() {
			for _, a := range assigns {
				if hadSaved[a.Name] {
					_ = st.Set(a.Name, saved[a.Name])
				} else {
					_ = st.Unset(a.Name)
				}
			}
		}()
	}

	args, err := x.Fields(c.Args)
	if err != nil {
		return fatalResult(&ExpansionError{Context: "command", Err: err})
	}
	if len(args) == 0 {
		return normalResult(0)
	}

	if st.Options.Xtrace {
		fmt.Fprintln(st.Stderr, "+ "+strings.Join(args, " "))
	}

	r := st.resolve(args[0])
	if !r.found() {
		fmt.Fprintf(st.Stderr, "%s: command not found\n", args[0])
		return normalResult(127)
	}
	switch {
	case r.fn != nil:
		return st.callFunction(r.fn, args[1:])
	case r.builtin != nil:
		return r.builtin(st, args[1:])
	default:
		return st.runExternal(r.external, args)
	}
}

func (st *State) applyPermanentAssigns(assigns []*syntax.Assign, x *expand.Expander) error {
	for _, a := range assigns {
		if err := st.applyAssign(a, x); err != nil {
			return err
		}
	}
	return nil
}

// applyAssign expands and binds one "name=value" / "name=(...)" /
// "name+=value" assignment (spec.md §3).
func (st *State) applyAssign(a *syntax.Assign, x *expand.Expander) error {
	if a.Array || a.Assoc {
		v := expand.Variable{}
		if a.Assoc {
			v.Kind = expand.Associative
			v.Assoc = make(map[string]string, len(a.Elems))
			for i, el := range a.Elems {
				val, err := x.ExpandLiteral(el.Value)
				if err != nil {
					return err
				}
				key := strconv.Itoa(i)
				if el.Index != nil {
					k, err := x.ExpandLiteral(el.Index)
					if err != nil {
						return err
					}
					key = k
				}
				v.Assoc[key] = val
			}
		} else {
			v.Kind = expand.Indexed
			v.Indx = make(map[int]string, len(a.Elems))
			next := 0
			for _, el := range a.Elems {
				val, err := x.ExpandLiteral(el.Value)
				if err != nil {
					return err
				}
				idx := next
				if el.Index != nil {
					lit, _ := el.Index.Lit()
					if n, err := expand.EvalArithm(lit, st); err == nil {
						idx = int(n)
					}
				}
				v.Indx[idx] = val
				next = idx + 1
			}
		}
		return st.Set(a.Name, v)
	}

	val, err := x.ExpandLiteral(a.Value)
	if err != nil {
		return err
	}

	if a.Index != nil {
		idxLit, _ := a.Index.Lit()
		prev, _ := st.Get(a.Name)
		if prev.Kind != expand.Indexed && prev.Kind != expand.Associative {
			prev = expand.Variable{Kind: expand.Indexed, Indx: map[int]string{}}
		}
		if n, err := strconv.Atoi(idxLit); err == nil && prev.Kind == expand.Indexed {
			if prev.Indx == nil {
				prev.Indx = map[int]string{}
			}
			prev.Indx[n] = val
			return st.Set(a.Name, prev)
		}
		if prev.Kind == expand.Associative {
			if prev.Assoc == nil {
				prev.Assoc = map[string]string{}
			}
			prev.Assoc[idxLit] = val
			return st.Set(a.Name, prev)
		}
	}

	if a.Append {
		prev, ok := st.Get(a.Name)
		if ok && prev.Kind == expand.String {
			val = prev.Str + val
		}
	}
	return st.Set(a.Name, expand.Variable{Kind: expand.String, Str: val})
}

// runPipeline runs Stmts connected by '|'/'|&'; every stage, the last one
// included, runs in a forked subshell, with the previous stage's captured stdout
// fed in as the next stage's stdin (spec.md §3). There is no concurrent
// OS process behind either stage, so buffered sequential staging is
// observably equivalent to true concurrent piping here.
func (st *State) runPipeline(p *syntax.Pipeline) exitResult {
	if len(p.Stmts) == 1 {
		res := st.runStmt(p.Stmts[0])
		if p.Negated && res.kind == ctrlNone {
			res.code = oneIf(res.code == 0)
		}
		return res
	}

	input := ""
	if st.Stdin != nil {
		if b, err := io.ReadAll(st.Stdin); err == nil {
			input = string(b)
		}
	}
	var last exitResult
	statuses := make([]int, len(p.Stmts))
	for i, s := range p.Stmts {
		lastStage := i == len(p.Stmts)-1
		child := st.forkSubshell()
		child.Stdin = strings.NewReader(input)
		var out bytes.Buffer
		if lastStage {
			child.Stdout = st.Stdout
		} else {
			child.Stdout = &out
		}
		res := child.runStmt(s)
		statuses[i] = res.code
		if !lastStage {
			input = out.String()
		}
		last = res
		if res.kind != ctrlNone && res.kind != ctrlExit {
			break
		}
	}

	code := last.code
	if st.Options.Pipefail {
		for i := len(statuses) - 1; i >= 0; i-- {
			if statuses[i] != 0 {
				code = statuses[i]
				break
			}
		}
	} else {
		code = statuses[len(statuses)-1]
	}
	if p.Negated {
		code = oneIf(code == 0)
	}
	result := normalResult(code)
	if last.kind == ctrlFatal {
		result.kind = ctrlFatal
		result.err = last.err
	}
	return result
}

func (st *State) runBinaryList(b *syntax.BinaryList) exitResult {
	switch b.Op {
	case syntax.AndAnd:
		// The left operand's status is only ever used to decide whether Y
		// runs, so it is exempt from errexit (spec.md §4.6 exemption (a)).
		// When it short-circuits, that exemption has to survive back out
		// to the enclosing statement's own errexitGuard call too, since
		// this exitResult becomes the whole BinaryList's result.
		x := st.runStmtNoErrexit(b.X)
		if x.kind != ctrlNone || x.code != 0 {
			x.errexitExempt = true
			return x
		}
		return st.runStmt(b.Y)
	case syntax.OrOr:
		x := st.runStmtNoErrexit(b.X)
		if x.kind != ctrlNone || x.code == 0 {
			x.errexitExempt = true
			return x
		}
		return st.runStmt(b.Y)
	default: // Semi, Amp: sequencing already applied by the parser via Sep
		x := st.runStmt(b.X)
		if x.kind != ctrlNone {
			return x
		}
		return st.runStmt(b.Y)
	}
}

func (st *State) runIf(i *syntax.IfClause) exitResult {
	cond := st.runStmtsNoErrexit(i.Cond)
	if cond.kind != ctrlNone {
		return cond
	}
	if cond.code == 0 {
		return st.runStmts(i.Then)
	}
	for _, e := range i.Elifs {
		c := st.runStmtsNoErrexit(e.Cond)
		if c.kind != ctrlNone {
			return c
		}
		if c.code == 0 {
			return st.runStmts(e.Then)
		}
	}
	if i.HasElse {
		return st.runStmts(i.Else)
	}
	return normalResult(0)
}

// unwindLoop adjusts a break/continue result for one enclosing loop level,
// reporting whether the loop itself should stop.
func unwindLoop(res exitResult) (stop bool, cont bool, out exitResult) {
	switch res.kind {
	case ctrlBreak:
		if res.loopN > 1 {
			res.loopN--
			return true, false, res
		}
		return true, false, normalResult(res.code)
	case ctrlContinue:
		if res.loopN > 1 {
			res.loopN--
			return true, false, res
		}
		return false, true, res
	case ctrlNone:
		return false, false, res
	default:
		return true, false, res
	}
}

func (st *State) runWhile(w *syntax.WhileClause) exitResult {
	last := normalResult(0)
	for {
		if err := st.limits.countIteration(); err != nil {
			return fatalResult(err)
		}
		cond := st.runStmtsNoErrexit(w.Cond)
		if cond.kind != ctrlNone {
			return cond
		}
		truthy := cond.code == 0
		if w.Until {
			truthy = !truthy
		}
		if !truthy {
			break
		}
		res := st.runStmts(w.Do)
		stop, _, out := unwindLoop(res)
		last = out
		if stop {
			return out
		}
	}
	return normalResult(last.code)
}

func (st *State) runFor(f *syntax.ForClause) exitResult {
	if f.CStyle != nil {
		return st.runCStyleFor(f)
	}
	x := st.newExpander()
	var items []string
	if f.HasIn {
		fs, err := x.Fields(f.Items)
		if err != nil {
			return fatalResult(err)
		}
		items = fs
	} else {
		items = st.Positional
	}

	last := 0
	for _, it := range items {
		if err := st.limits.countIteration(); err != nil {
			return fatalResult(err)
		}
		if err := st.Set(f.Name, expand.Variable{Kind: expand.String, Str: it}); err != nil {
			return fatalResult(err)
		}
		res := st.runStmts(f.Do)
		stop, _, out := unwindLoop(res)
		last = out.code
		if stop {
			return out
		}
	}
	return normalResult(last)
}

func (st *State) runCStyleFor(f *syntax.ForClause) exitResult {
	c := f.CStyle
	if c.Init != "" {
		if _, err := expand.EvalArithm(c.Init, st); err != nil {
			return fatalResult(err)
		}
	}
	last := 0
	for {
		if c.Cond != "" {
			n, err := expand.EvalArithm(c.Cond, st)
			if err != nil {
				return fatalResult(err)
			}
			if n == 0 {
				break
			}
		}
		if err := st.limits.countIteration(); err != nil {
			return fatalResult(err)
		}
		res := st.runStmts(f.Do)
		stop, _, out := unwindLoop(res)
		last = out.code
		if stop {
			return out
		}
		if c.Post != "" {
			if _, err := expand.EvalArithm(c.Post, st); err != nil {
				return fatalResult(err)
			}
		}
	}
	return normalResult(last)
}

func (st *State) runCase(c *syntax.CaseClause) exitResult {
	x := st.newExpander()
	word, err := x.ExpandLiteral(c.Word)
	if err != nil {
		return fatalResult(err)
	}

	for ai, arm := range c.Arms {
		matched := false
		for _, pw := range arm.Patterns {
			pat, err := x.ExpandLiteral(pw)
			if err != nil {
				return fatalResult(err)
			}
			re, err := syntax.TranslatePattern(pat, syntax.EntireString)
			if err != nil {
				continue
			}
			if re.MatchString(word) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		res := st.runStmts(arm.Stmts)
		switch arm.Term {
		case syntax.CaseBreak:
			return res
		case syntax.CaseFallThrough:
			if res.kind != ctrlNone {
				return res
			}
			if ai+1 < len(c.Arms) {
				return st.runStmts(c.Arms[ai+1].Stmts)
			}
			return res
		case syntax.CaseContinueMatching:
			if res.kind != ctrlNone {
				return res
			}
			continue
		}
		return res
	}
	return normalResult(0)
}

func (st *State) runSubshell(s *syntax.Subshell) exitResult {
	child := st.forkSubshell()
	res := child.runStmts(s.Stmts)
	st.LastExit = res.code
	return res
}

func (st *State) runFuncDecl(f *syntax.FuncDecl) exitResult {
	st.defineFunc(f.Name, f.Body)
	return normalResult(0)
}

func (st *State) runArithmCmd(a *syntax.ArithmCmd) exitResult {
	n, err := expand.EvalArithm(a.Expr, st)
	if err != nil {
		return fatalResult(err)
	}
	return normalResult(oneIf(n == 0))
}

// callFunction invokes a previously-declared function: a new scope frame,
// positional parameters rebound to args, and return/recursion-limit
// handling (spec.md §4.4).
func (st *State) callFunction(fd *funcDecl, args []string) exitResult {
	if err := st.limits.enterRecursion(); err != nil {
		return fatalResult(err)
	}
	defer st.limits.exitRecursion()

	savedArgs := st.Positional
	st.Positional = args
	st.pushFrame()
	res := st.runStmtSync(fd.body)
	st.popFrame()
	st.Positional = savedArgs

	if res.kind == ctrlReturn {
		res.kind = ctrlNone
	}
	return res
}

// runExternal dispatches to a registered command.Command, translating its
// buffered Result into the statement's stdout/stderr streams and an
// ordinary (never ctrlFatal) exit status, per spec.md §7's rule that
// external-command failures are status codes, not Go errors.
func (st *State) runExternal(c command.Command, args []string) exitResult {
	stdin := ""
	if st.Stdin != nil {
		if b, err := io.ReadAll(st.Stdin); err == nil {
			stdin = string(b)
		}
	}
	env := make(map[string]string)
	st.Each(func(name string, v expand.Variable) bool {
		if v.Attrs.Exported && v.Kind == expand.String {
			env[name] = v.Str
		}
		return true
	})
	cwd := "/"
	if st.FS != nil {
		cwd = st.FS.Getwd()
	}

	ctx := command.Context{
		Ctx:   st.ctx,
		Args:  args,
		Stdin: stdin,
		Cwd:   cwd,
		Env:   env,
		FS:    st.FS,
	}
	if st.Fetch != nil {
		ctx.FetchFn = st.Fetch
	}

	res := c.Execute(ctx)
	if res.Stdout != "" && st.Stdout != nil {
		io.WriteString(st.Stdout, res.Stdout)
	}
	if res.Stderr != "" && st.Stderr != nil {
		io.WriteString(st.Stderr, res.Stderr)
	}
	return normalResult(res.ExitCode)
}
