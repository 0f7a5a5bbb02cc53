package expand_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/expand"
)

func TestEvalArithmPrecedence(t *testing.T) {
	c := qt.New(t)
	v, err := expand.EvalArithm("2 + 3 * 4", expand.MapEnviron{})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(14))
}

func TestEvalArithmParens(t *testing.T) {
	c := qt.New(t)
	v, err := expand.EvalArithm("(2 + 3) * 4", expand.MapEnviron{})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(20))
}

func TestEvalArithmComparison(t *testing.T) {
	c := qt.New(t)
	v, err := expand.EvalArithm("3 < 5", expand.MapEnviron{})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(1))
}

func TestEvalArithmDivideByZero(t *testing.T) {
	c := qt.New(t)
	_, err := expand.EvalArithm("1 / 0", expand.MapEnviron{})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestEvalArithmVariableReadWrite(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{
		"x": {Kind: expand.String, Str: "10"},
	}
	v, err := expand.EvalArithm("x + 5", env)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(15))
}

func TestEvalArithmIncrementAssign(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{
		"x": {Kind: expand.String, Str: "1"},
	}
	_, err := expand.EvalArithm("x += 4", env)
	c.Assert(err, qt.IsNil)
	stored, _ := env.Get("x")
	c.Assert(stored.Str, qt.Equals, "5")
}

func TestEvalArithmTernary(t *testing.T) {
	c := qt.New(t)
	v, err := expand.EvalArithm("1 ? 10 : 20", expand.MapEnviron{})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(10))
}
