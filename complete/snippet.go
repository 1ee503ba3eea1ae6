package complete

import (
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/texsense/errors"
)

// Expansion is a snippet with its placeholders filled in.
type Expansion struct {
	Text string
	// Stops maps each placeholder number (1, 2, ...) to the byte offset in
	// Text where the cursor lands when that stop is visited.
	Stops map[int]int
	// Final is the byte offset of ${0}, or len(Text) when absent.
	Final int
}

// Order returns the offsets visited when accepting every placeholder in
// numeric order, ending with the final cursor.
func (e Expansion) Order() []int {
	nums := make([]int, 0, len(e.Stops))
	for n := range e.Stops {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]int, 0, len(nums)+1)
	for _, n := range nums {
		out = append(out, e.Stops[n])
	}
	return append(out, e.Final)
}

type snippetPart struct {
	literal     string
	placeholder int // -1 for literal parts
	def         string
}

// parseSnippet splits a snippet template into literal text and $n, ${n} and
// ${n:default} placeholders. Backslash escapes only $, } and \ so LaTeX
// sequences like \) survive untouched.
func parseSnippet(snippet string) ([]snippetPart, error) {
	var parts []snippetPart
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, snippetPart{literal: lit.String(), placeholder: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(snippet); i++ {
		ch := snippet[i]
		switch {
		case ch == '\\' && i+1 < len(snippet) && strings.IndexByte(`$}\`, snippet[i+1]) >= 0:
			lit.WriteByte(snippet[i+1])
			i++

		case ch == '$' && i+1 < len(snippet) && isDigit(snippet[i+1]):
			j := i + 1
			for j < len(snippet) && isDigit(snippet[j]) {
				j++
			}
			n, _ := strconv.Atoi(snippet[i+1 : j])
			flush()
			parts = append(parts, snippetPart{placeholder: n})
			i = j - 1

		case ch == '$' && i+1 < len(snippet) && snippet[i+1] == '{':
			j := i + 2
			for j < len(snippet) && isDigit(snippet[j]) {
				j++
			}
			if j == i+2 {
				return nil, errors.Newf("snippet %q: expected placeholder number at offset %d", snippet, i)
			}
			n, _ := strconv.Atoi(snippet[i+2 : j])
			def := ""
			if j < len(snippet) && snippet[j] == ':' {
				end := strings.IndexByte(snippet[j:], '}')
				if end < 0 {
					return nil, errors.Newf("snippet %q: unterminated placeholder at offset %d", snippet, i)
				}
				def = snippet[j+1 : j+end]
				j += end
			}
			if j >= len(snippet) || snippet[j] != '}' {
				return nil, errors.Newf("snippet %q: unterminated placeholder at offset %d", snippet, i)
			}
			flush()
			parts = append(parts, snippetPart{placeholder: n, def: def})
			i = j

		default:
			lit.WriteByte(ch)
		}
	}
	flush()
	return parts, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ValidateSnippet checks that placeholders are numbered 1..n without gaps and
// that ${0} appears at most once.
func ValidateSnippet(snippet string) error {
	parts, err := parseSnippet(snippet)
	if err != nil {
		return err
	}
	seen := map[int]bool{}
	finals := 0
	for _, p := range parts {
		switch {
		case p.placeholder == 0:
			finals++
		case p.placeholder > 0:
			seen[p.placeholder] = true
		}
	}
	if finals > 1 {
		return errors.Newf("snippet %q: ${0} appears %d times", snippet, finals)
	}
	for n := 1; n <= len(seen); n++ {
		if !seen[n] {
			return errors.Newf("snippet %q: placeholder ${%d} missing", snippet, n)
		}
	}
	return nil
}

// ExpandSnippet fills placeholders with values (falling back to each
// placeholder's default) and records where every stop lands.
func ExpandSnippet(snippet string, values map[int]string) (Expansion, error) {
	parts, err := parseSnippet(snippet)
	if err != nil {
		return Expansion{}, err
	}

	var b strings.Builder
	exp := Expansion{Stops: map[int]int{}, Final: -1}
	for _, p := range parts {
		if p.placeholder < 0 {
			b.WriteString(p.literal)
			continue
		}
		if p.placeholder == 0 {
			exp.Final = b.Len()
			continue
		}
		if _, ok := exp.Stops[p.placeholder]; !ok {
			exp.Stops[p.placeholder] = b.Len()
		}
		if v, ok := values[p.placeholder]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(p.def)
		}
	}
	exp.Text = b.String()
	if exp.Final < 0 {
		exp.Final = len(exp.Text)
	}
	return exp, nil
}
