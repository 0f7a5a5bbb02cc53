package syntax_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/syntax"
)

func parse(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := syntax.Parse(src, "test")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return f
}

func TestParseSimpleCommand(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo hello world")
	c.Assert(f.Stmts, qt.HasLen, 1)

	call, ok := f.Stmts[0].Cmd.(*syntax.CallExpr)
	c.Assert(ok, qt.IsTrue)
	c.Assert(call.Args, qt.HasLen, 3)
	lit, ok := call.Args[0].Lit()
	c.Assert(ok, qt.IsTrue)
	c.Assert(lit, qt.Equals, "echo")
}

func TestParsePipeline(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "cat file | grep foo | wc -l")
	p, ok := f.Stmts[0].Cmd.(*syntax.Pipeline)
	c.Assert(ok, qt.IsTrue)
	c.Assert(p.Stmts, qt.HasLen, 3)
}

func TestParseAndOrList(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "true && echo yes || echo no")
	_, ok := f.Stmts[0].Cmd.(*syntax.BinaryList)
	c.Assert(ok, qt.IsTrue)
}

func TestParseIfClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "if true; then echo a; elif false; then echo b; else echo c; fi")
	ifc, ok := f.Stmts[0].Cmd.(*syntax.IfClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(ifc.Then) > 0, qt.IsTrue)
	c.Assert(ifc.Elifs, qt.HasLen, 1)
	c.Assert(len(ifc.Else) > 0, qt.IsTrue)
}

func TestParseWhileClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "while true; do echo x; done")
	w, ok := f.Stmts[0].Cmd.(*syntax.WhileClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(w.Until, qt.Equals, false)
}

func TestParseUntilClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "until false; do echo x; done")
	w, ok := f.Stmts[0].Cmd.(*syntax.WhileClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(w.Until, qt.IsTrue)
}

func TestParseForClauseList(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for i in a b c; do echo $i; done")
	fc, ok := f.Stmts[0].Cmd.(*syntax.ForClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fc.CStyle, qt.IsNil)
	c.Assert(fc.Items, qt.HasLen, 3)
}

func TestParseForClauseCStyle(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "for ((i=0; i<10; i++)); do echo $i; done")
	fc, ok := f.Stmts[0].Cmd.(*syntax.ForClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(fc.CStyle, qt.Not(qt.IsNil))
}

func TestParseCaseClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "case $x in a) echo a;; b|c) echo bc;; *) echo other;; esac")
	cc, ok := f.Stmts[0].Cmd.(*syntax.CaseClause)
	c.Assert(ok, qt.IsTrue)
	c.Assert(cc.Arms, qt.HasLen, 3)
}

func TestParseFuncDecl(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "myfunc() { echo hi; }")
	_, ok := f.Stmts[0].Cmd.(*syntax.FuncDecl)
	c.Assert(ok, qt.IsTrue)
}

func TestParseSubshell(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "(echo hi)")
	_, ok := f.Stmts[0].Cmd.(*syntax.Subshell)
	c.Assert(ok, qt.IsTrue)
}

func TestParseRedirects(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "echo hi > out.txt 2>> err.txt")
	st := f.Stmts[0]
	c.Assert(st.Redirs, qt.HasLen, 2)
}

func TestParseTestClause(t *testing.T) {
	c := qt.New(t)
	f := parse(t, `[[ -n "$x" && "$x" == foo ]]`)
	_, ok := f.Stmts[0].Cmd.(*syntax.TestClause)
	c.Assert(ok, qt.IsTrue)
}

func TestParseAssignment(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "FOO=bar echo hi")
	st := f.Stmts[0]
	c.Assert(st.Assigns, qt.HasLen, 1)
	c.Assert(st.Assigns[0].Name, qt.Equals, "FOO")
}

func TestParseBackground(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "sleep 1 &")
	c.Assert(f.Stmts[0].Background, qt.IsTrue)
}

func TestParseNegated(t *testing.T) {
	c := qt.New(t)
	f := parse(t, "! true")
	c.Assert(f.Stmts[0].Negated, qt.IsTrue)
}
