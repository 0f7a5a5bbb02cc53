package syntax

import (
	"regexp"
	"strings"
)

// PatternMode controls how a shell glob is translated to a regular
// expression (spec.md §4.4).
type PatternMode uint

const (
	// NoGlobStar disables extglob: only '*', '?' and '[...]' are special.
	NoGlobStar PatternMode = 0
	// ExtGlob enables ?(...), *(...), +(...), @(...) alternations; a pattern
	// with a !(...) group fails to compile (see translateExtGlobGroup).
	ExtGlob PatternMode = 1 << iota
	// EntireString anchors the translated pattern to match the whole
	// input rather than search for a substring (used by glob/case/[[ ==]],
	// as opposed to the substring search [[ =~ ]] uses directly via Go's
	// regexp package on the raw extended-regex text).
	EntireString
	// NoCase folds letter case during matching.
	NoCase
	// FilenameMode excludes '/' from '*' and '?' matches, matching path
	// segment boundaries as real pathname globbing does.
	FilenameMode
)

// TranslatePattern compiles a shell glob pattern into a Go regular
// expression implementing spec.md §4.4's semantics.
func TranslatePattern(pat string, mode PatternMode) (*regexp.Regexp, error) {
	var sb strings.Builder
	if mode&EntireString != 0 {
		sb.WriteString("^")
	}
	if err := translateInto(&sb, pat, mode); err != nil {
		return nil, err
	}
	if mode&EntireString != 0 {
		sb.WriteString("$")
	}
	reSrc := sb.String()
	if mode&NoCase != 0 {
		reSrc = "(?i)" + reSrc
	}
	return regexp.Compile(reSrc)
}

func translateInto(sb *strings.Builder, pat string, mode PatternMode) error {
	i := 0
	for i < len(pat) {
		c := pat[i]
		switch c {
		case '*':
			if mode&FilenameMode != 0 {
				sb.WriteString("[^/]*")
			} else {
				sb.WriteString(".*")
			}
			i++
		case '?':
			if mode&FilenameMode != 0 {
				sb.WriteString("[^/]")
			} else {
				sb.WriteString(".")
			}
			i++
		case '[':
			n, err := translateClass(sb, pat[i:])
			if err != nil {
				return err
			}
			i += n
		case '\\':
			if i+1 < len(pat) {
				sb.WriteString(regexp.QuoteMeta(string(pat[i+1])))
				i += 2
			} else {
				sb.WriteString(`\\`)
				i++
			}
		case '(':
			if mode&ExtGlob != 0 && i > 0 && isExtGlobPrefix(pat[i-1]) {
				n, err := translateExtGlobGroup(sb, pat[i-1], pat[i:], mode)
				if err != nil {
					return err
				}
				i += n
				continue
			}
			sb.WriteString(`\(`)
			i++
		default:
			if mode&ExtGlob != 0 && isExtGlobPrefix(c) && i+1 < len(pat) && pat[i+1] == '(' {
				// handled when we reach the '(' above; just emit nothing
				// for the prefix char itself and let the '(' branch fire.
				i++
				continue
			}
			sb.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return nil
}

func isExtGlobPrefix(c byte) bool {
	switch c {
	case '?', '*', '+', '@', '!':
		return true
	}
	return false
}

// translateExtGlobGroup translates one extglob group "X(alt|alt|...)"
// starting at body[0]=='(' (the prefix char was already consumed by the
// caller's lookback), returning the number of bytes of body consumed.
func translateExtGlobGroup(sb *strings.Builder, prefix byte, body string, mode PatternMode) (int, error) {
	depth := 1
	end := -1
	for j := 1; j < len(body); j++ {
		switch body[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = j
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return 0, &ParseError{Msg: "unterminated extglob group"}
	}
	inner := body[1:end]
	alts := strings.Split(inner, "|")
	var innerSB strings.Builder
	innerSB.WriteString("(?:")
	for i, alt := range alts {
		if i > 0 {
			innerSB.WriteString("|")
		}
		if err := translateInto(&innerSB, alt, mode); err != nil {
			return 0, err
		}
	}
	innerSB.WriteString(")")
	group := innerSB.String()
	switch prefix {
	case '?':
		sb.WriteString(group + "?")
	case '*':
		sb.WriteString(group + "*")
	case '+':
		sb.WriteString(group + "+")
	case '@':
		sb.WriteString(group)
	case '!':
		// "not any of the alternatives" is written as a negative
		// lookahead, which Go's RE2-based regexp does not support:
		// regexp.Compile rejects it, so TranslatePattern returns an error
		// for any pattern containing a !(...) group.
		sb.WriteString("(?:(?!" + strings.TrimSuffix(strings.TrimPrefix(group, "(?:"), ")") + ").)*")
	}
	return end + 1, nil
}

// translateClass translates a "[...]" character class, including the
// "[!...]"/"[^...]" negation spec.md §4.4 calls for.
func translateClass(sb *strings.Builder, pat string) (int, error) {
	if !strings.HasPrefix(pat, "[") {
		return 0, &ParseError{Msg: "not a character class"}
	}
	j := 1
	neg := false
	if j < len(pat) && (pat[j] == '!' || pat[j] == '^') {
		neg = true
		j++
	}
	start := j
	// a ']' right after '[' or '[!' is a literal member, not the closer.
	if j < len(pat) && pat[j] == ']' {
		j++
	}
	for j < len(pat) && pat[j] != ']' {
		j++
	}
	if j >= len(pat) {
		// unterminated class: bash treats '[' as a literal.
		sb.WriteString(`\[`)
		return 1, nil
	}
	body := pat[start:j]
	sb.WriteString("[")
	if neg {
		sb.WriteString("^")
	}
	sb.WriteString(escapeClassBody(body))
	sb.WriteString("]")
	return j + 1, nil
}

func escapeClassBody(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '^', ']':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// HasGlobMeta reports whether a string contains unquoted glob
// metacharacters, per spec.md §4.3 item 7.
func HasGlobMeta(s string, mode PatternMode) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[':
			return true
		case '(':
			if mode&ExtGlob != 0 && i > 0 && isExtGlobPrefix(s[i-1]) {
				return true
			}
		}
	}
	return false
}
