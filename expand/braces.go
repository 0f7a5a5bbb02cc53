package expand

import (
	"strconv"
	"strings"
)

// ExpandBraces performs bash brace expansion on raw literal text, per
// spec.md §4.3 item 1: "{a,b,c}" becomes three words and "{1..5}" /
// "{01..10..2}" / "{a..e}" become numeric/alphabetic sequences. It is
// applied to a word only when every part of that word is a plain Literal
// run (syntax.Word.Lit), since expansion happens before quote removal and a
// quoted or backslash-escaped brace is never special (spec.md §9 decision). Malformed brace
// expressions are left untouched rather than erroring, matching bash.
//
// Grounded on the brace-splitting state machine in
// teacherref/syntax/braces.go, adapted to operate directly on strings
// instead of building an intermediate AST node.
func ExpandBraces(s string) []string {
	out, ok := expandOne(s)
	if !ok {
		return []string{s}
	}
	return out
}

// expandOne finds the first top-level brace group in s and expands it,
// recursing into the prefix/suffix and into nested groups. ok is false if s
// contains no well-formed brace group, in which case callers should treat s
// as a literal.
func expandOne(s string) ([]string, bool) {
	start := findBraceStart(s)
	if start < 0 {
		return nil, false
	}
	end, items, isSeq := scanBraceGroup(s, start)
	if end < 0 {
		// try further along the string: this '{' didn't close cleanly.
		rest, ok := expandOne(s[start+1:])
		if !ok {
			return nil, false
		}
		var out []string
		for _, r := range rest {
			out = append(out, s[:start+1]+r)
		}
		return out, true
	}

	prefix := s[:start]
	suffix := s[end+1:]

	var elems []string
	if isSeq {
		elems = expandSequence(items)
		if elems == nil {
			// malformed sequence: treat the whole {..} as literal text and
			// keep scanning past it.
			rest, ok := expandOne(suffix)
			if !ok {
				return []string{prefix + s[start:end+1] + suffix}, true
			}
			var out []string
			for _, r := range rest {
				out = append(out, prefix+s[start:end+1]+r)
			}
			return out, true
		}
	} else {
		if len(items) < 2 {
			// "{x}" with no comma/sequence is not a brace expansion.
			rest, ok := expandOne(suffix)
			if !ok {
				return []string{prefix + s[start:end+1] + suffix}, true
			}
			var out []string
			for _, r := range rest {
				out = append(out, prefix+s[start:end+1]+r)
			}
			return out, true
		}
		for _, it := range items {
			sub, ok := expandOne(it)
			if ok {
				elems = append(elems, sub...)
			} else {
				elems = append(elems, it)
			}
		}
	}

	var tails []string
	if t, ok := expandOne(suffix); ok {
		tails = t
	} else {
		tails = []string{suffix}
	}

	var out []string
	for _, e := range elems {
		for _, t := range tails {
			out = append(out, prefix+e+t)
		}
	}
	return out, true
}

func findBraceStart(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			return i
		}
	}
	return -1
}

// scanBraceGroup scans the group starting at s[start]=='{', returning the
// index of the matching '}', the top-level comma-separated items (or the
// 2-3 dot-separated sequence endpoints), and whether it parsed as a
// "{a..b}" sequence rather than a "{a,b,c}" list.
func scanBraceGroup(s string, start int) (end int, items []string, isSeq bool) {
	depth := 0
	itemStart := start + 1
	var commaItems []string
	var dotItems []string
	seenComma := false
	seenDots := false
	i := start
	for i < len(s) {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				last := s[itemStart:i]
				if seenDots {
					dotItems = append(dotItems, last)
					return i, dotItems, true
				}
				commaItems = append(commaItems, last)
				return i, commaItems, false
			}
		case ',':
			if depth == 1 && !seenDots {
				commaItems = append(commaItems, s[itemStart:i])
				itemStart = i + 1
				seenComma = true
			}
		case '.':
			if depth == 1 && !seenComma && i+1 < len(s) && s[i+1] == '.' {
				dotItems = append(dotItems, s[itemStart:i])
				i++
				itemStart = i + 1
				seenDots = true
			}
		}
		i++
	}
	return -1, nil, false
}

// expandSequence expands a "{a..b}" or "{a..b..c}" numeric/alphabetic
// sequence. Returns nil if the endpoints are malformed (mixed
// numeric/alpha, multi-char alpha endpoints, or a non-numeric increment).
func expandSequence(items []string) []string {
	if len(items) != 2 && len(items) != 3 {
		return nil
	}
	start, end := items[0], items[1]
	step := 1
	if len(items) == 3 {
		n, err := strconv.Atoi(items[2])
		if err != nil || n == 0 {
			return nil
		}
		if n < 0 {
			step = n
		} else {
			step = n
		}
	}

	if n1, err1 := strconv.Atoi(start); err1 == nil {
		n2, err2 := strconv.Atoi(end)
		if err2 != nil {
			return nil
		}
		width := 0
		if len(start) > 1 && (start[0] == '0' || (start[0] == '-' && len(start) > 2 && start[1] == '0')) {
			width = len(strings.TrimPrefix(start, "-"))
		}
		if len(end) > 1 && (end[0] == '0' || (end[0] == '-' && len(end) > 2 && end[1] == '0')) {
			if w := len(strings.TrimPrefix(end, "-")); w > width {
				width = w
			}
		}
		if step == 1 && n2 < n1 {
			step = -1
		}
		if step == 0 {
			return nil
		}
		var out []string
		if step > 0 {
			for v := n1; v <= n2; v += step {
				out = append(out, formatSeqInt(v, width))
			}
		} else {
			for v := n1; v >= n2; v += step {
				out = append(out, formatSeqInt(v, width))
			}
		}
		return out
	}

	if len(start) == 1 && len(end) == 1 && isAlpha(start[0]) && isAlpha(end[0]) {
		a, b := start[0], end[0]
		if step == 1 && b < a {
			step = -1
		}
		if step == 0 {
			return nil
		}
		var out []string
		if step > 0 {
			for c := int(a); c <= int(b); c += step {
				out = append(out, string(rune(c)))
			}
		} else {
			for c := int(a); c >= int(b); c += step {
				out = append(out, string(rune(c)))
			}
		}
		return out
	}

	return nil
}

func formatSeqInt(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	for len(digits) < width {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
