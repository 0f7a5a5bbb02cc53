package expand_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/expand"
	"github.com/cageshell/cageshell/syntax"
)

// words parses `echo <src>` and returns the CallExpr's argument words,
// letting tests build *syntax.Word values through the real parser instead
// of hand-assembling WordPart trees.
func words(t *testing.T, src string) []*syntax.Word {
	t.Helper()
	f, err := syntax.Parse("echo "+src, "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	call := f.Stmts[0].Cmd.(*syntax.CallExpr)
	return call.Args[1:]
}

func newExpander(env expand.MapEnviron) *expand.Expander {
	return &expand.Expander{
		Env:        env,
		Positional: []string{"one", "two"},
		ScriptName: "test",
	}
}

func TestFieldsSplitsOnIFS(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{
		"FOO": {Kind: expand.String, Str: "a b c"},
	}
	x := newExpander(env)

	got, err := x.Fields(words(t, "$FOO"))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a", "b", "c"})
}

func TestFieldsQuotedPreservesWhitespace(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{
		"FOO": {Kind: expand.String, Str: "a b c"},
	}
	x := newExpander(env)

	got, err := x.Fields(words(t, `"$FOO"`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"a b c"})
}

func TestFieldsLiteralUnchanged(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})

	got, err := x.Fields(words(t, "hello"))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"hello"})
}

func TestFieldsPositionalParam(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})

	got, err := x.Fields(words(t, "$1 $2"))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"one", "two"})
}

func TestExpandParamDefaultValue(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})

	got, err := x.Fields(words(t, `"${UNSET:-fallback}"`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"fallback"})
}

func TestExpandParamLength(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{
		"FOO": {Kind: expand.String, Str: "hello"},
	}
	x := newExpander(env)

	got, err := x.Fields(words(t, `"${#FOO}"`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"5"})
}

func TestExpandArithmetic(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})

	got, err := x.Fields(words(t, `"$((2 + 3 * 4))"`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"14"})
}

func TestExpandArithmeticAssignsVariable(t *testing.T) {
	c := qt.New(t)
	env := expand.MapEnviron{}
	v, err := expand.EvalArithm("x = 5 + 1", env)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, int64(6))

	stored, ok := env.Get("x")
	c.Assert(ok, qt.IsTrue)
	c.Assert(stored.Str, qt.Equals, "6")
}

func TestExpandCommandSubstitution(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})
	x.CmdSubst = func(stmts []*syntax.Stmt) (string, error) {
		return "captured\n", nil
	}

	got, err := x.Fields(words(t, `"$(anything)"`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"captured"})
}

func TestExpandUnsetWithNounsetStyleOperator(t *testing.T) {
	c := qt.New(t)
	x := newExpander(expand.MapEnviron{})

	_, err := x.Fields(words(t, `"${MISSING:?must be set}"`))
	c.Assert(err, qt.Not(qt.IsNil))
	_, ok := err.(*expand.UnsetParameterError)
	c.Assert(ok, qt.IsTrue)
}
