package expand

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/cageshell/cageshell/syntax"
)

// CmdSubstFunc runs the statements inside a $(...)/`...` command
// substitution and returns its captured standard output, trailing
// newlines trimmed by the caller.
type CmdSubstFunc func(stmts []*syntax.Stmt) (string, error)

// GlobFunc expands a single pathname pattern against whatever filesystem
// the embedding interpreter is using (spec.md §4.3 item 7); a nil GlobFunc
// disables pathname expansion entirely, same as NoGlob.
type GlobFunc func(pattern string) ([]string, error)

// HomeDirFunc resolves "~" (empty name) or "~name" to a home directory;
// used by tilde expansion (spec.md §4.3 item 2).
type HomeDirFunc func(name string) (string, bool)

// Expander holds everything the eight-step word-expansion pipeline needs
// beyond the variable environment itself: positional parameters, the
// script name for "$0", and the hooks into command substitution,
// arithmetic, and pathname globbing that only the embedding interpreter
// can satisfy.
//
// Grounded on teacherref/expand/expand.go's Context, split so that the
// filesystem/process concerns it handled with direct os/user calls are
// instead optional hooks — this shell's filesystem is the sandboxed vfs,
// not the host's.
type Expander struct {
	Env        ParamEnviron
	Positional []string
	ScriptName string

	NoGlob   bool
	GlobStar bool

	CmdSubst CmdSubstFunc
	Glob     GlobFunc
	HomeDir  HomeDirFunc
}

func (x *Expander) ifs() string {
	if v, ok := x.Env.Get("IFS"); ok && v.Kind == String {
		return v.Str
	}
	return " \t\n"
}

func (x *Expander) ifsRune(r rune) bool {
	for _, r2 := range x.ifs() {
		if r == r2 {
			return true
		}
	}
	return false
}

func (x *Expander) ifsJoin(strs []string) string {
	ifs := x.ifs()
	sep := ""
	if ifs != "" {
		sep = ifs[:1]
	}
	return strings.Join(strs, sep)
}

// fieldPart is one run of text plus whether it originated inside quotes,
// which determines whether it is later subject to splitting and globbing.
type fieldPart struct {
	s      string
	quoted bool
}

// ExpandLiteral expands a word the way a double-quoted context would: no
// splitting, no globbing, fields joined with the first IFS character. Used
// for the right-hand words of parameter-expansion operators and for
// redirection targets.
func (x *Expander) ExpandLiteral(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	parts, err := x.wordField(w.Parts, true)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.s)
	}
	return sb.String(), nil
}

// Fields runs the full pipeline (spec.md §4.3) over a list of words,
// producing the final argv-style field list: brace expansion, tilde
// expansion, parameter/command/arithmetic expansion, field splitting,
// pathname expansion, and quote removal.
func (x *Expander) Fields(words []*syntax.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fs, err := x.expandWordBraces(w)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// expandWordBraces performs step 1 (brace expansion) before handing each
// resulting literal candidate to the rest of the pipeline. Brace
// expansion only applies to a word built entirely from plain Literal
// parts: once anything is quoted or substituted, braces are no longer
// special.
func (x *Expander) expandWordBraces(w *syntax.Word) ([]string, error) {
	if lit, ok := w.Lit(); ok {
		variants := ExpandBraces(lit)
		if len(variants) > 1 {
			var out []string
			for _, v := range variants {
				sub := &syntax.Word{Parts: []syntax.WordPart{&syntax.Literal{Value: v}}}
				fs, err := x.expandWordRest(sub)
				if err != nil {
					return nil, err
				}
				out = append(out, fs...)
			}
			return out, nil
		}
	}
	return x.expandWordRest(w)
}

// expandWordRest performs steps 2-8: tilde/parameter/command/arithmetic
// expansion (via wordField), then splitting, globbing and quote removal.
func (x *Expander) expandWordRest(w *syntax.Word) ([]string, error) {
	parts, err := x.wordField(w.Parts, false)
	if err != nil {
		return nil, err
	}

	fields := x.splitFields(parts)

	var out []string
	for _, f := range fields {
		if x.NoGlob || x.Glob == nil || f.quoted || !syntax.HasGlobMeta(f.s, x.globMode()) {
			out = append(out, f.s)
			continue
		}
		matches, err := x.Glob(f.s)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			out = append(out, f.s)
			continue
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (x *Expander) globMode() syntax.PatternMode {
	mode := syntax.EntireString | syntax.FilenameMode
	if x.GlobStar {
		mode |= syntax.ExtGlob
	}
	return mode
}

// splitFields merges a word's fieldParts into quote-respecting field
// boundaries: quoted runs never split, unquoted runs split on IFS.
// Grounded on the fieldPart-merging approach in
// teacherref/expand/expand.go's wordField/fieldJoin split.
type splitField struct {
	s      string
	quoted bool
}

func (x *Expander) splitFields(parts []fieldPart) []splitField {
	var fields []splitField
	var cur strings.Builder
	curQuoted := false
	haveCur := false

	flush := func() {
		if haveCur {
			fields = append(fields, splitField{s: cur.String(), quoted: curQuoted})
			cur.Reset()
			haveCur = false
			curQuoted = false
		}
	}

	for _, p := range parts {
		if p.quoted {
			if haveCur && !curQuoted && cur.Len() == 0 {
				curQuoted = true
			}
			if haveCur && !curQuoted {
				// an unquoted run already accumulated chars: keep it
				// together with what follows by treating the combined
				// run as unquoted, since quoting only blocks splitting
				// of the quoted bytes themselves.
				cur.WriteString(p.s)
				haveCur = true
				continue
			}
			cur.WriteString(p.s)
			haveCur = true
			curQuoted = true
			continue
		}
		pieces := splitIFS(p.s, x.ifs())
		if len(pieces) == 0 {
			continue
		}
		if !haveCur {
			curQuoted = false
		}
		cur.WriteString(pieces[0])
		haveCur = true
		for _, mid := range pieces[1:] {
			flush()
			cur.WriteString(mid)
			haveCur = true
			curQuoted = false
		}
	}
	flush()
	if len(fields) == 0 {
		return []splitField{{s: "", quoted: true}}
	}
	return fields
}

// splitIFS implements POSIX field splitting: runs of IFS whitespace
// collapse to one delimiter, a single non-whitespace IFS character is its
// own delimiter (absorbing adjacent whitespace), and leading/trailing IFS
// whitespace is dropped.
func splitIFS(s, ifs string) []string {
	if ifs == "" || s == "" {
		return []string{s}
	}
	isWS := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }
	wsSet := map[rune]bool{}
	nonWSSet := map[rune]bool{}
	for _, r := range ifs {
		if isWS(r) {
			wsSet[r] = true
		} else {
			nonWSSet[r] = true
		}
	}

	runes := []rune(s)
	n := len(runes)
	i := 0
	for i < n && wsSet[runes[i]] {
		i++
	}

	var fields []string
	var cur strings.Builder
	started := false
	for i < n {
		r := runes[i]
		switch {
		case wsSet[r]:
			fields = append(fields, cur.String())
			cur.Reset()
			started = false
			for i < n && wsSet[runes[i]] {
				i++
			}
			if i < n && nonWSSet[runes[i]] {
				i++
				for i < n && wsSet[runes[i]] {
					i++
				}
			}
		case nonWSSet[r]:
			fields = append(fields, cur.String())
			cur.Reset()
			started = false
			i++
			for i < n && wsSet[runes[i]] {
				i++
			}
		default:
			cur.WriteRune(r)
			started = true
			i++
		}
	}
	if started || cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

// wordField expands each WordPart of a word into a flat fieldPart slice
// without yet splitting or globbing; outerQuoted seeds the quoted flag
// for plain literals (true inside a surrounding double-quoted word).
func (x *Expander) wordField(wparts []syntax.WordPart, outerQuoted bool) ([]fieldPart, error) {
	var out []fieldPart
	for _, wp := range wparts {
		switch p := wp.(type) {
		case *syntax.Literal:
			out = append(out, fieldPart{s: p.Value, quoted: outerQuoted})
		case *syntax.Escaped:
			out = append(out, fieldPart{s: string(p.Char), quoted: true})
		case *syntax.SglQuoted:
			out = append(out, fieldPart{s: p.Value, quoted: true})
		case *syntax.DblQuoted:
			inner, err := x.dblQuotedFields(p)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		case *syntax.ParamExp:
			if !outerQuoted && isAtOrStar(p) {
				for i, elem := range x.Positional {
					if i > 0 {
						out = append(out, fieldPart{s: "", quoted: false})
					}
					out = append(out, fieldPart{s: elem, quoted: false})
				}
				continue
			}
			s, err := x.ExpandParam(p)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{s: s, quoted: outerQuoted})
		case *syntax.CmdSubst:
			if x.CmdSubst == nil {
				return nil, fmt.Errorf("command substitution not supported in this context")
			}
			s, err := x.CmdSubst(p.Stmts)
			if err != nil {
				return nil, err
			}
			s = strings.TrimRight(s, "\n")
			out = append(out, fieldPart{s: s, quoted: outerQuoted})
		case *syntax.ArithmExp:
			n, err := EvalArithm(p.Expr, x.Env)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{s: strconv.FormatInt(n, 10), quoted: outerQuoted})
		case *syntax.TildeExp:
			s, err := x.expandTilde(p.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, fieldPart{s: s, quoted: outerQuoted})
		case *syntax.BraceExp:
			// never produced by this parser: brace expansion runs on raw
			// literal text before the AST is built (see expandWordBraces).
		}
	}
	return out, nil
}

func isAtOrStar(p *syntax.ParamExp) bool {
	return p.Name == "@" || p.Name == "*"
}

func (x *Expander) dblQuotedFields(d *syntax.DblQuoted) ([]fieldPart, error) {
	// "$@" inside double quotes expands to one quoted field per
	// positional parameter, per spec.md §4.3's documented special case.
	if len(d.Parts) == 1 {
		if pe, ok := d.Parts[0].(*syntax.ParamExp); ok && pe.Name == "@" && pe.Index == nil {
			var out []fieldPart
			for _, elem := range x.Positional {
				out = append(out, fieldPart{s: elem, quoted: true})
			}
			if len(out) == 0 {
				return nil, nil
			}
			return out, nil
		}
	}
	return x.wordField(d.Parts, true)
}

func (x *Expander) expandTilde(name string) (string, error) {
	if x.HomeDir != nil {
		if home, ok := x.HomeDir(name); ok {
			return home, nil
		}
	}
	if name == "" {
		if v, ok := x.Env.Get("HOME"); ok {
			return v.Str, nil
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir, nil
		}
		return "~", nil
	}
	if u, err := user.Lookup(name); err == nil {
		return u.HomeDir, nil
	}
	return "~" + name, nil
}
