package interp

import (
	"regexp"

	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/syntax"
)

// evalTest evaluates a "[[ ... ]]" boolean-expression tree (spec.md §4.2),
// grounded on the same unary/binary test-operator table bash and the
// teacher's syntax.TestClause grammar share; `[`/`test` (builtin.go) do not
// use it and evaluate their expanded argv with evalTestArgv instead.
func (st *State) evalTest(x *expand.Expander, te syntax.TestExpr) (bool, error) {
	switch t := te.(type) {
	case *syntax.TestParen:
		return st.evalTest(x, t.X)
	case *syntax.TestWord:
		s, err := x.ExpandLiteral(t.W)
		if err != nil {
			return false, err
		}
		return s != "", nil
	case *syntax.TestUnary:
		if t.Op == "!" {
			v, err := st.evalTest(x, t.X)
			if err != nil {
				return false, err
			}
			return !v, nil
		}
		s, err := x.ExpandLiteral(t.Arg)
		if err != nil {
			return false, err
		}
		return st.evalUnaryTest(t.Op, s), nil
	case *syntax.TestBinary:
		switch t.Op {
		case "&&":
			l, err := st.evalTest(x, t.X)
			if err != nil {
				return false, err
			}
			if !l {
				return false, nil
			}
			return st.evalTest(x, t.Y)
		case "||":
			l, err := st.evalTest(x, t.X)
			if err != nil {
				return false, err
			}
			if l {
				return true, nil
			}
			return st.evalTest(x, t.Y)
		}
		return st.evalBinaryTest(x, t)
	}
	return false, nil
}

func (st *State) evalUnaryTest(op, s string) bool {
	switch op {
	case "-z":
		return s == ""
	case "-n":
		return s != ""
	}
	if st.FS == nil {
		return false
	}
	info, err := st.FS.Stat(s)
	switch op {
	case "-e":
		return err == nil
	case "-f":
		return err == nil && !info.IsDir
	case "-d":
		return err == nil && info.IsDir
	case "-s":
		return err == nil && info.Size > 0
	case "-r", "-w":
		return err == nil
	case "-x":
		return err == nil && info.Mode&0o111 != 0
	}
	return false
}

func wordLit(x *expand.Expander, w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return x.ExpandLiteral(w)
}

func (st *State) evalBinaryTest(x *expand.Expander, t *syntax.TestBinary) (bool, error) {
	lw, lok := t.X.(*syntax.TestWord)
	rw, rok := t.Y.(*syntax.TestWord)
	if !lok || !rok {
		return false, nil
	}
	l, err := wordLit(x, lw.W)
	if err != nil {
		return false, err
	}
	r, err := wordLit(x, rw.W)
	if err != nil {
		return false, err
	}

	switch t.Op {
	case "=", "==":
		re, err := syntax.TranslatePattern(r, syntax.EntireString)
		if err != nil {
			return l == r, nil
		}
		return re.MatchString(l), nil
	case "!=":
		re, err := syntax.TranslatePattern(r, syntax.EntireString)
		if err != nil {
			return l != r, nil
		}
		return !re.MatchString(l), nil
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "=~":
		re, err := regexp.Compile(r)
		if err != nil {
			return false, &ExpansionError{Context: "=~", Err: err}
		}
		loc := re.FindStringSubmatchIndex(l)
		if loc == nil {
			return false, nil
		}
		groups := re.FindStringSubmatch(l)
		idx := make(map[int]string, len(groups))
		for i, g := range groups {
			idx[i] = g
		}
		return true, st.Set("BASH_REMATCH", expand.Variable{Kind: expand.Indexed, Indx: idx})
	}

	ln, lerr := expand.EvalArithm(l, st)
	rn, rerr := expand.EvalArithm(r, st)
	if lerr != nil || rerr != nil {
		return false, nil
	}
	switch t.Op {
	case "-eq":
		return ln == rn, nil
	case "-ne":
		return ln != rn, nil
	case "-lt":
		return ln < rn, nil
	case "-le":
		return ln <= rn, nil
	case "-gt":
		return ln > rn, nil
	case "-ge":
		return ln >= rn, nil
	}
	return false, nil
}
