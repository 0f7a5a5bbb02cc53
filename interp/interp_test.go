package interp_test

import (
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cageshell/cageshell/interp"
	"github.com/cageshell/cageshell/vfs"
)

// run executes script against a fresh Interpreter and returns its
// stdout, stderr, and exit code.
func run(t *testing.T, script string) (string, string, int) {
	t.Helper()
	var stdout, stderr strings.Builder
	it := interp.New(interp.WithStdio(&stdout, &stderr))
	res := it.Exec(context.Background(), script, nil)
	if res.Err != nil {
		t.Fatalf("script %q: %v", script, res.Err)
	}
	return stdout.String(), stderr.String(), res.ExitCode
}

func TestEchoAndExitCode(t *testing.T) {
	c := qt.New(t)
	out, _, code := run(t, "echo hello")
	c.Assert(out, qt.Equals, "hello\n")
	c.Assert(code, qt.Equals, 0)
}

func TestVariableAssignmentAndExpansion(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, "x=foo; echo $x")
	c.Assert(out, qt.Equals, "foo\n")
}

func TestAndOrShortCircuit(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, "true && echo yes || echo no")
	c.Assert(out, qt.Equals, "yes\n")

	out, _, _ = run(t, "false && echo yes || echo no")
	c.Assert(out, qt.Equals, "no\n")
}

func TestIfElseBranches(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `if [ 1 -eq 1 ]; then echo a; else echo b; fi`)
	c.Assert(out, qt.Equals, "a\n")
}

func TestWhileLoop(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `i=0; while [ $i -lt 3 ]; do echo $i; i=$((i+1)); done`)
	c.Assert(out, qt.Equals, "0\n1\n2\n")
}

func TestCStyleForLoop(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `for ((i=0; i<3; i++)); do echo $i; done`)
	c.Assert(out, qt.Equals, "0\n1\n2\n")
}

func TestForInLoop(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `for x in a b c; do echo $x; done`)
	c.Assert(out, qt.Equals, "a\nb\nc\n")
}

func TestCaseClauseMatching(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `x=b; case $x in a) echo A;; b|c) echo BC;; *) echo other;; esac`)
	c.Assert(out, qt.Equals, "BC\n")
}

func TestFunctionDeclAndCall(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `greet() { echo "hi $1"; }; greet world`)
	c.Assert(out, qt.Equals, "hi world\n")
}

func TestPipelinePipesOutput(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `echo -e "foo\nbar\nfoobar" | grep foo | wc -l`)
	c.Assert(strings.TrimSpace(out), qt.Equals, "2")
}

func TestSubshellIsolatesVariables(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `x=outer; (x=inner; echo "in: $x"); echo "out: $x"`)
	c.Assert(out, qt.Equals, "in: inner\nout: outer\n")
}

func TestCommandSubstitution(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `echo "result: $(echo nested)"`)
	c.Assert(out, qt.Equals, "result: nested\n")
}

func TestExitCodeFromExternalCommandNotFound(t *testing.T) {
	c := qt.New(t)
	_, _, code := run(t, `totally-unknown-command`)
	c.Assert(code, qt.Equals, 127)
}

func TestErrexitStopsScript(t *testing.T) {
	c := qt.New(t)
	var stdout, stderr strings.Builder
	it := interp.New(
		interp.WithStdio(&stdout, &stderr),
		interp.WithOptions(interp.Options{Errexit: true}),
	)
	res := it.Exec(context.Background(), "echo before; false; echo after", nil)
	c.Assert(stdout.String(), qt.Equals, "before\n")
	c.Assert(res.ExitCode, qt.Equals, 1)
}

func TestPipefailReportsLastNonZeroStage(t *testing.T) {
	c := qt.New(t)
	var stdout, stderr strings.Builder
	it := interp.New(
		interp.WithStdio(&stdout, &stderr),
		interp.WithOptions(interp.Options{Pipefail: true}),
	)
	res := it.Exec(context.Background(), `false | true | false | true`, nil)
	c.Assert(res.ExitCode, qt.Equals, 1)
}

func TestBackgroundJobAndWait(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `(echo bg) & wait; echo done`)
	c.Assert(out, qt.Equals, "bg\ndone\n")
}

func TestFileRedirectionRoundTrip(t *testing.T) {
	c := qt.New(t)
	var stdout, stderr strings.Builder
	fs := vfs.NewMemFS()
	it := interp.New(interp.WithFileSystem(fs), interp.WithStdio(&stdout, &stderr))
	res := it.Exec(context.Background(), `echo hi > /out.txt; cat /out.txt`, nil)
	c.Assert(res.Err, qt.IsNil)
	c.Assert(stdout.String(), qt.Equals, "hi\n")
	data, err := fs.ReadFile("/out.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "hi\n")
}

func TestHeredocRedirection(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, "cat <<EOF\nline1\nline2\nEOF\n")
	c.Assert(out, qt.Equals, "line1\nline2\n")
}

func TestTestBracketBuiltin(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `if [ -n "abc" ]; then echo yes; fi`)
	c.Assert(out, qt.Equals, "yes\n")
}

func TestDoubleBracketRegexMatch(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `[[ "hello123" =~ ^[a-z]+[0-9]+$ ]] && echo matched`)
	c.Assert(out, qt.Equals, "matched\n")
}

func TestLocalScopingInFunctions(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `x=global; f() { local x=local; echo $x; }; f; echo $x`)
	c.Assert(out, qt.Equals, "local\nglobal\n")
}

func TestArrayAssignmentAndIndex(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `arr=(a b c); echo ${arr[1]}`)
	c.Assert(out, qt.Equals, "b\n")
}

func TestReturnFromFunction(t *testing.T) {
	c := qt.New(t)
	_, _, code := run(t, `f() { return 3; }; f`)
	c.Assert(code, qt.Equals, 3)
}

func TestBreakAndContinueInLoop(t *testing.T) {
	c := qt.New(t)
	out, _, _ := run(t, `for i in 1 2 3 4 5; do if [ $i -eq 2 ]; then continue; fi; if [ $i -eq 4 ]; then break; fi; echo $i; done`)
	c.Assert(out, qt.Equals, "1\n3\n")
}

func TestExecutionLimitStopsRunawayLoop(t *testing.T) {
	c := qt.New(t)
	var stdout, stderr strings.Builder
	it := interp.New(
		interp.WithStdio(&stdout, &stderr),
		interp.WithLimits(interp.Limits{MaxIterations: 10, MaxCommands: 1000, MaxRecursion: 100}),
	)
	res := it.Exec(context.Background(), `i=0; while true; do i=$((i+1)); done`, nil)
	c.Assert(res.Err, qt.Not(qt.IsNil))
}

func TestBreakWithLevelUnwindsOuterLoop(t *testing.T) {
	c := qt.New(t)
	out, _, code := run(t, `for i in 1 2; do for j in 1 2; do echo "$i$j"; break 2; done; done`)
	c.Assert(out, qt.Equals, "11\n")
	c.Assert(code, qt.Equals, 0)
}

func TestContinueWithLevelUnwindsOuterLoop(t *testing.T) {
	c := qt.New(t)
	// "continue 2" skips the rest of both the inner loop's body and the
	// outer loop's body for this iteration, so "unreached-$i" never runs.
	out, _, _ := run(t, `for i in 1 2 3; do for j in 1 2 3; do if [ $j -eq 2 ]; then continue 2; fi; echo "$i-$j"; done; echo "unreached-$i"; done`)
	c.Assert(out, qt.Equals, "1-1\n2-1\n3-1\n")
}

func runErrexit(t *testing.T, script string) (string, int) {
	t.Helper()
	var stdout, stderr strings.Builder
	it := interp.New(
		interp.WithStdio(&stdout, &stderr),
		interp.WithOptions(interp.Options{Errexit: true}),
	)
	res := it.Exec(context.Background(), script, nil)
	return stdout.String(), res.ExitCode
}

func TestErrexitExemptsIfCondition(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `if false; then echo x; fi; echo y`)
	c.Assert(out, qt.Equals, "y\n")
	c.Assert(code, qt.Equals, 0)
}

func TestErrexitExemptsElifCondition(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `if false; then echo x; elif false; then echo y; else echo z; fi`)
	c.Assert(out, qt.Equals, "z\n")
	c.Assert(code, qt.Equals, 0)
}

func TestErrexitExemptsWhileCondition(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `i=0; while [ $i -lt 3 ]; do i=$((i+1)); done; echo $i`)
	c.Assert(out, qt.Equals, "3\n")
	c.Assert(code, qt.Equals, 0)
}

func TestErrexitExemptsAndOrLeftOperand(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `false && echo a; echo after-and`)
	c.Assert(out, qt.Equals, "after-and\n")
	c.Assert(code, qt.Equals, 0)

	out, code = runErrexit(t, `false || echo b`)
	c.Assert(out, qt.Equals, "b\n")
	c.Assert(code, qt.Equals, 0)
}

func TestErrexitExemptsNegatedCommand(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `! true; echo after`)
	c.Assert(out, qt.Equals, "after\n")
	c.Assert(code, qt.Equals, 0)
}

func TestErrexitStillTriggersOnUnguardedFailure(t *testing.T) {
	c := qt.New(t)
	out, code := runErrexit(t, `echo before; if true; then false; fi; echo after`)
	c.Assert(out, qt.Equals, "before\n")
	c.Assert(code, qt.Equals, 1)
}
