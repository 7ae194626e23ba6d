package storm

import (
	"fmt"
	"strings"

	"github.com/dekarrin/rosed"
)

// BadSyntax is the single error type that surfaces from the parser entry
// points. All lower-level lexing/parsing failures are
// normalized into one of these at the boundary; none leak past it.
type BadSyntax struct {
	text string
	at   int
	mesg string
}

// Error renders a one-line message with the failing byte offset.
func (e BadSyntax) Error() string {
	return fmt.Sprintf("syntax error: at byte %d: %s", e.at, e.mesg)
}

// Text returns the full input text the error was raised against.
func (e BadSyntax) Text() string { return e.text }

// At returns the byte offset the error was raised at. It always lies in
// [0, len(Text())].
func (e BadSyntax) At() int { return e.at }

// Mesg returns the human-facing message without position context.
func (e BadSyntax) Mesg() string { return e.mesg }

// FullMessage renders the error message together with the offending
// source line and a cursor pointing at the failing column, wrapped to a
// terminal width.
func (e BadSyntax) FullMessage() string {
	line, col := lineAndColumn(e.text, e.at)
	cursor := strings.Repeat(" ", col) + "^"
	body := fmt.Sprintf("%s\n%s\n%s", line, cursor, e.Error())
	return rosed.Edit(body).Wrap(100).String()
}

// lineAndColumn converts a byte offset into a 0-indexed (line-text, column)
// pair for cursor rendering. Out-of-range offsets (e.g. end-of-input
// errors) clamp to the last line.
func lineAndColumn(text string, at int) (string, int) {
	if at > len(text) {
		at = len(text)
	}
	lineStart := strings.LastIndexByte(text[:at], '\n') + 1
	lineEndRel := strings.IndexByte(text[at:], '\n')
	lineEnd := len(text)
	if lineEndRel >= 0 {
		lineEnd = at + lineEndRel
	}
	return text[lineStart:lineEnd], at - lineStart
}

// badSyntaxf constructs a BadSyntax with a formatted message.
func badSyntaxf(text string, at int, format string, args ...any) BadSyntax {
	return BadSyntax{text: text, at: at, mesg: fmt.Sprintf(format, args...)}
}

// unexpectedCharacter builds the diagnostic for a lexical failure: a
// character the lexer could not tokenize at all.
func unexpectedCharacter(text string, at int, ch rune, allowed map[string]struct{}) BadSyntax {
	mesg := fmt.Sprintf("No terminal matches %q. Expecting one of: %s", ch, englishList(allowed))
	return BadSyntax{text: text, at: at, mesg: mesg}
}

// unexpectedToken builds the diagnostic for a parse failure where a token
// was read but none of the grammar alternatives in play accepted it. A
// peek that ran off the end of input reports as an end-of-input error
// instead.
func unexpectedToken(text string, tok token, allowed map[string]struct{}) BadSyntax {
	if tok.isEOF() {
		return unexpectedEOF(text, allowed)
	}
	mesg := fmt.Sprintf("Unexpected %s. Expecting one of: %s", englishFor(tok.id), englishList(allowed))
	return BadSyntax{text: text, at: tok.start, mesg: mesg}
}

// unexpectedEOF builds the diagnostic for end-of-input errors: at is the length of the input, and the
// expected set is rendered the same way as any other diagnostic.
func unexpectedEOF(text string, allowed map[string]struct{}) BadSyntax {
	mesg := fmt.Sprintf("Unexpected end of input. Expecting one of: %s", englishList(allowed))
	return BadSyntax{text: text, at: len(text), mesg: mesg}
}
