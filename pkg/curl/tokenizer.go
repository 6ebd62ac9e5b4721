package curl

import (
	"fmt"
	"strings"
)

// token is one shell word. quoted is set when the word opens with a quote,
// which keeps values such as '-1' from reading as flags.
type token struct {
	text   string
	quoted bool
}

type lexState struct {
	buf     strings.Builder
	quoted  bool
	started bool
	out     []token
}

func (st *lexState) add(r rune) {
	st.buf.WriteRune(r)
	st.started = true
}

func (st *lexState) openQuote() {
	if !st.started {
		st.quoted = true
	}
	st.started = true
}

func (st *lexState) flush() {
	if !st.started {
		return
	}
	st.out = append(st.out, token{text: st.buf.String(), quoted: st.quoted})
	st.buf.Reset()
	st.quoted = false
	st.started = false
}

// splitTokens splits a command line into words. Single quotes are literal,
// double quotes honour backslash escapes of `"`, `\`, `$` and backtick, and a
// backslash before a line break joins the lines.
func splitTokens(input string) ([]token, error) {
	st := &lexState{}
	rs := []rune(input)
	var inSingle, inDouble bool

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
				continue
			}
			st.add(r)

		case inDouble:
			switch r {
			case '"':
				inDouble = false
			case '\\':
				if i+1 >= len(rs) {
					return nil, fmt.Errorf("unterminated escape sequence")
				}
				next := rs[i+1]
				switch {
				case next == '"' || next == '\\' || next == '$' || next == '`':
					st.add(next)
					i++
				case isLineBreak(next):
					i = skipLineBreak(rs, i+1)
				default:
					st.add(r)
				}
			default:
				st.add(r)
			}

		case r == '\'':
			inSingle = true
			st.openQuote()

		case r == '"':
			inDouble = true
			st.openQuote()

		case r == '\\':
			if i+1 >= len(rs) {
				return nil, fmt.Errorf("unterminated escape sequence")
			}
			if isLineBreak(rs[i+1]) {
				i = skipLineBreak(rs, i+1)
				continue
			}
			st.add(rs[i+1])
			i++

		case isWhitespace(r):
			st.flush()

		default:
			st.add(r)
		}
	}

	if inSingle || inDouble {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	st.flush()
	return st.out, nil
}

// skipLineBreak returns the index of the last rune of the line break that
// starts at i, treating \r\n as one break.
func skipLineBreak(rs []rune, i int) int {
	if rs[i] == '\r' && i+1 < len(rs) && rs[i+1] == '\n' {
		return i + 1
	}
	return i
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
