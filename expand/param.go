package expand

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cageshell/cageshell/syntax"
)

// ParamEnviron is the variable-access capability parameter expansion needs:
// read/write of Variable values (ArithEnviron) plus enumeration of every
// visible name through Each.
type ParamEnviron interface {
	ArithEnviron
	Each(func(name string, v Variable) bool)
}

// UnsetParameterError is raised by the ":?"/"?" operator and by nounset mode
// (spec.md §7).
type UnsetParameterError struct {
	Name    string
	Message string
}

func (e *UnsetParameterError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: parameter not set", e.Name)
}

const maxNameRefDepth = 100

// resolveVar follows NameRef indirection up to maxNameRefDepth hops, per
// spec.md §3's nameref cycle-detection requirement.
func resolveVar(env ParamEnviron, name string, depth int) (Variable, bool) {
	v, ok := env.Get(name)
	if !ok || depth > maxNameRefDepth {
		return v, ok
	}
	if v.Kind == NameRef && v.NameRefTarget != "" {
		return resolveVar(env, v.NameRefTarget, depth+1)
	}
	return v, ok
}

// scalarOf renders a Variable as the single string bash would substitute
// for a bare (non-@/*-indexed) reference: an indexed/associative array
// collapses to its element at index 0, per bash's documented behavior.
func scalarOf(v Variable) string {
	switch v.Kind {
	case String:
		return v.Str
	case Indexed:
		return v.Indx[0]
	case Associative:
		// bash has no canonical "index 0" for an assoc array; empty string
		// matches the common case of an unset-looking reference.
		return ""
	}
	return ""
}

// allElems returns the ordered element list used by "@"/"*" indexing and by
// prefix/suffix-removal and case-conversion operators, which apply
// element-wise to arrays.
func allElems(v Variable) []string {
	switch v.Kind {
	case Indexed:
		if len(v.Indx) == 0 {
			return nil
		}
		max := 0
		for i := range v.Indx {
			if i > max {
				max = i
			}
		}
		out := make([]string, 0, len(v.Indx))
		for i := 0; i <= max; i++ {
			if s, ok := v.Indx[i]; ok {
				out = append(out, s)
			}
		}
		return out
	case Associative:
		keys := make([]string, 0, len(v.Assoc))
		for k := range v.Assoc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, v.Assoc[k])
		}
		return out
	default:
		return []string{v.Str}
	}
}

// ExpandParam implements one ${...}/$NAME reference, per spec.md §4.3 item
// 3's operator table. Array indexes are evaluated with EvalArithm and the
// pattern operators compile their patterns with syntax.TranslatePattern,
// both called directly.
//
// Grounded on the switch over syntax.ParamExp.Op in
// teacherref/expand/param.go's paramExp, adapted to this package's Op
// string tags and Variable/array model.
func (x *Expander) ExpandParam(pe *syntax.ParamExp) (string, error) {
	name := pe.Name
	var v Variable
	var set bool
	if name == "@" || name == "*" {
		v = Variable{Kind: Indexed, Indx: indexFromSlice(x.Positional)}
		set = len(x.Positional) > 0
	} else if name == "#" {
		v = Variable{Kind: String, Str: strconv.Itoa(len(x.Positional))}
		set = true
	} else if n, err := strconv.Atoi(name); err == nil {
		if n == 0 {
			v = Variable{Kind: String, Str: x.ScriptName}
		} else if n-1 < len(x.Positional) {
			v = Variable{Kind: String, Str: x.Positional[n-1]}
		}
		set = n == 0 || n-1 < len(x.Positional)
	} else {
		v, set = resolveVar(x.Env, name, 0)
	}

	if pe.Excl && pe.Op == "" && pe.Index == nil {
		// ${!NAME}: indirect expansion through the value of NAME.
		target := scalarOf(v)
		if target == "" {
			return "", nil
		}
		iv, iok := resolveVar(x.Env, target, 0)
		if !iok {
			return "", nil
		}
		return scalarOf(iv), nil
	}
	if pe.Excl && strings.HasSuffix(pe.Name, "") && pe.Op == "" && pe.Index != nil {
		// not reached: array-key listing handled via Index below.
	}

	str := scalarOf(v)
	if (name == "@" || name == "*") && pe.Index == nil {
		// "$*" joins the positional parameters with the first IFS
		// character; "$@" in a single-string context joins with a space.
		if name == "*" {
			str = x.ifsJoin(x.Positional)
		} else {
			str = strings.Join(x.Positional, " ")
		}
	}
	indexed := false
	if pe.Index != nil {
		idxLit, _ := pe.Index.Lit()
		switch idxLit {
		case "@", "*":
			elems := allElems(v)
			if idxLit == "@" {
				str = strings.Join(elems, " ")
			} else {
				str = x.ifsJoin(elems)
			}
			indexed = true
		default:
			n, err := EvalArithm(idxLit, x.Env)
			if err != nil {
				return "", err
			}
			switch v.Kind {
			case Indexed:
				str = v.Indx[int(n)]
			case Associative:
				str = v.Assoc[idxLit]
			}
			indexed = true
		}
	}
	_ = indexed

	if pe.Length {
		if pe.Index != nil {
			idxLit, _ := pe.Index.Lit()
			if idxLit == "@" || idxLit == "*" {
				return strconv.Itoa(len(allElems(v))), nil
			}
		}
		return strconv.Itoa(len([]rune(str))), nil
	}

	switch pe.Op {
	case "":
		return str, nil
	case "-", ":-":
		if set && (pe.Op == "-" || str != "") {
			return str, nil
		}
		return x.expandArg(pe.Arg)
	case "+", ":+":
		if !set || (pe.Op == ":+" && str == "") {
			return "", nil
		}
		return x.expandArg(pe.Arg)
	case "=", ":=":
		if set && (pe.Op == "=" || str != "") {
			return str, nil
		}
		val, err := x.expandArg(pe.Arg)
		if err != nil {
			return "", err
		}
		if err := x.Env.Set(name, Variable{Kind: String, Str: val}); err != nil {
			return "", err
		}
		return val, nil
	case "?", ":?":
		if set && (pe.Op == "?" || str != "") {
			return str, nil
		}
		msg, _ := x.expandArg(pe.Arg)
		if msg == "" {
			msg = "parameter null or not set"
		}
		return "", &UnsetParameterError{Name: name, Message: msg}
	case ":":
		offArg, _ := pe.Arg.Lit()
		off, err := EvalArithm(offArg, x.Env)
		if err != nil {
			return "", err
		}
		runes := []rune(str)
		if off < 0 {
			off = int64(len(runes)) + off
			if off < 0 {
				off = 0
			}
		}
		if off > int64(len(runes)) {
			off = int64(len(runes))
		}
		runes = runes[off:]
		if pe.Slice != nil {
			lenArg, _ := pe.Slice.Lit()
			n, err := EvalArithm(lenArg, x.Env)
			if err != nil {
				return "", err
			}
			if n < 0 {
				n = int64(len(runes)) + n
				if n < 0 {
					n = 0
				}
			}
			if n > int64(len(runes)) {
				n = int64(len(runes))
			}
			runes = runes[:n]
		}
		return string(runes), nil
	case "#", "##", "%", "%%":
		pat, err := x.expandArg(pe.Arg)
		if err != nil {
			return "", err
		}
		fromEnd := pe.Op == "%" || pe.Op == "%%"
		greedy := pe.Op == "##" || pe.Op == "%%"
		elems := allElems(v)
		for i, e := range elems {
			elems[i] = removePattern(e, pat, fromEnd, greedy)
		}
		return strings.Join(elems, " "), nil
	case "/", "//":
		argStr, err := x.expandArg(pe.Arg)
		if err != nil {
			return "", err
		}
		orig, with, found := strings.Cut(argStr, "/")
		if !found {
			with = ""
		}
		all := pe.Op == "//"
		return replacePattern(str, orig, with, all), nil
	case "@":
		letter, _ := pe.Arg.Lit()
		return x.expandAtOp(letter, v, str)
	}
	return str, nil
}

func indexFromSlice(ss []string) map[int]string {
	m := make(map[int]string, len(ss))
	for i, s := range ss {
		m[i] = s
	}
	return m
}

func (x *Expander) expandArg(w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	return x.ExpandLiteral(w)
}

func (x *Expander) expandAtOp(letter string, v Variable, str string) (string, error) {
	switch letter {
	case "Q":
		return strconv.Quote(str), nil
	case "E":
		return unescapeBackslashes(str), nil
	case "U":
		return strings.ToUpper(str), nil
	case "u":
		if str == "" {
			return str, nil
		}
		return strings.ToUpper(str[:1]) + str[1:], nil
	case "L", "l":
		return strings.ToLower(str), nil
	case "a":
		return attrsString(v.Attrs), nil
	case "A":
		return fmt.Sprintf("%s=%q", "", str), nil
	}
	return "", fmt.Errorf("unsupported ${...@%s} operator", letter)
}

func unescapeBackslashes(s string) string {
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

func attrsString(a Attrs) string {
	var sb strings.Builder
	if a.Integer {
		sb.WriteByte('i')
	}
	if a.Lowercase {
		sb.WriteByte('l')
	}
	if a.Uppercase {
		sb.WriteByte('u')
	}
	if a.ReadOnly {
		sb.WriteByte('r')
	}
	if a.Exported {
		sb.WriteByte('x')
	}
	if a.NameRef {
		sb.WriteByte('n')
	}
	return sb.String()
}

// removePattern implements "#"/"##"/"%"/"%%": strip the shortest (bare) or
// longest (doubled) match of pat from the front or back of str.
func removePattern(str, pat string, fromEnd, greedy bool) string {
	mode := syntax.NoGlobStar
	if !fromEnd && !greedy {
		mode = syntax.NoGlobStar // shortest prefix: anchor + lazy, handled below
	}
	re, err := syntax.TranslatePattern(pat, mode)
	if err != nil {
		return str
	}
	src := re.String()
	var anchored string
	switch {
	case fromEnd && greedy:
		anchored = "(" + src + ")$"
	case fromEnd && !greedy:
		anchored = "^.*(" + src + ")$"
	case !fromEnd && greedy:
		anchored = "^(" + src + ")"
	default:
		anchored = "^(" + src + ")"
	}
	rx, err := regexp.Compile(anchored)
	if err != nil {
		return str
	}
	loc := rx.FindStringSubmatchIndex(str)
	if loc == nil {
		return str
	}
	if !greedy && !fromEnd {
		// shortest prefix match: the first rune boundary at which the
		// prefix matches the whole pattern.
		whole, err := regexp.Compile("^(?:" + src + ")$")
		if err != nil {
			return str
		}
		for end := 0; end <= loc[3]; end++ {
			if (end == len(str) || str[end]&0xC0 != 0x80) && whole.MatchString(str[:end]) {
				return str[end:]
			}
		}
	}
	return str[:loc[2]] + str[loc[3]:]
}

func replacePattern(str, pat, with string, all bool) string {
	re, err := syntax.TranslatePattern(pat, syntax.NoGlobStar)
	if err != nil {
		return str
	}
	if all {
		return re.ReplaceAllLiteralString(str, with)
	}
	loc := re.FindStringIndex(str)
	if loc == nil {
		return str
	}
	return str[:loc[0]] + with + str[loc[1]:]
}
