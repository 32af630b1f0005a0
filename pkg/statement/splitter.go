// Package statement provides SQL script splitting and top-level
// statement classification.
//
// The splitter is a single-pass state machine: it never parses SQL, it
// only tracks whether the scanner is inside a string literal, a quoted
// identifier, or a comment, so that statement separators embedded in
// those regions are inert.
package statement

import (
	"strings"

	"github.com/unisql-project/unisql/pkg/errors"
)

// Statement is a single executable SQL string plus its zero-based
// position in the originating script. Immutable.
type Statement struct {
	Text     string
	Position int
}

// splitState tracks the scanner's lexical context.
type splitState int

const (
	stateNormal splitState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateBracket
	stateLineComment
	stateBlockComment
)

// Split divides raw SQL text into an ordered sequence of statements.
// The separator ';' is significant only outside strings, quoted
// identifiers, and comments. Segments with no executable content
// (empty, whitespace-only, or comment-only) are dropped.
//
// An unterminated quote or block comment at end of input is reported as
// a syntax error attributed to the final statement; the statements
// split so far, including the offending trailing text, are still
// returned so the caller can produce a per-statement report for it.
func Split(raw string) ([]Statement, error) {
	var (
		stmts []Statement
		buf   strings.Builder
		state = stateNormal
	)

	// force keeps a segment with no executable content; used for the
	// trailing text of an unterminated quote or comment so the caller
	// can attribute the fault to it.
	flush := func(force bool) {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" || (!force && !executableContent(text)) {
			return
		}
		stmts = append(stmts, Statement{Text: text, Position: len(stmts)})
	}

	n := len(raw)
	for i := 0; i < n; i++ {
		c := raw[i]

		switch state {
		case stateNormal:
			switch {
			case c == ';':
				flush(false)
				continue
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '`':
				state = stateBacktick
			case c == '[':
				state = stateBracket
			case c == '-' && i+1 < n && raw[i+1] == '-':
				state = stateLineComment
			case c == '/' && i+1 < n && raw[i+1] == '*':
				state = stateBlockComment
				buf.WriteByte(c)
				i++
				c = raw[i]
			}

		case stateSingleQuote:
			if c == '\'' {
				// Doubled quote is an escaped quote, stay in string.
				if i+1 < n && raw[i+1] == '\'' {
					buf.WriteByte(c)
					i++
					c = raw[i]
				} else {
					state = stateNormal
				}
			}

		case stateDoubleQuote:
			if c == '"' {
				state = stateNormal
			}

		case stateBacktick:
			if c == '`' {
				state = stateNormal
			}

		case stateBracket:
			if c == ']' {
				state = stateNormal
			}

		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			}

		case stateBlockComment:
			if c == '*' && i+1 < n && raw[i+1] == '/' {
				buf.WriteByte(c)
				i++
				c = raw[i]
				state = stateNormal
			}
		}

		buf.WriteByte(c)
	}

	// A trailing line comment is legal; only unterminated quotes and
	// block comments force the segment through for fault attribution.
	flush(state != stateNormal && state != stateLineComment)

	switch state {
	case stateSingleQuote, stateDoubleQuote, stateBacktick, stateBracket:
		return stmts, errors.New(errors.KindSyntax, errors.CodeUnterminatedString,
			"unterminated string or quoted identifier at end of script").
			WithField("position", len(stmts)-1)
	case stateBlockComment:
		return stmts, errors.New(errors.KindSyntax, errors.CodeUnterminatedComment,
			"unterminated block comment at end of script").
			WithField("position", len(stmts)-1)
	}

	return stmts, nil
}

// executableContent reports whether text contains anything beyond
// whitespace and comments.
func executableContent(text string) bool {
	i, n := 0, len(text)
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && text[i+1] == '*':
			i += 2
			for i+1 < n && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i += 2
		default:
			return true
		}
	}
	return false
}
