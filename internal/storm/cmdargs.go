package storm

import (
	"strconv"
	"strings"
	"unicode"
)

// file cmdargs.go implements the auxiliary command-argument string
// parser: a small independent grammar, separate from the main Storm
// tokenizer (lexer.go), for a single command-line-style value — a
// parenthesized comma-separated list, a quoted string, or a bare token
// that stops at whitespace, a comma, or one of "()=[]{}'\"".
//
// ParseStormCmdArgs composes this value-at-a-time parser into the tuple
// a full argument string lowers to.

// bareTokenStop reports whether r ends (or cannot appear inside) a bare,
// unquoted command-argument token. A bare token may not contain
// whitespace, a quote, or one of "()=[]{}". A comma ends a bare token
// wherever it appears, so a bare token never contains a comma, not even
// between other characters.
func bareTokenStop(r rune) bool {
	switch r {
	case '(', ')', '=', '[', ']', '{', '}', '\'', '"', ',':
		return true
	}
	return unicode.IsSpace(r)
}

// parseCmdValue parses exactly one value starting at byte offset off,
// after skipping leading whitespace, returning the value and the offset
// immediately past it. value is one of: int64, string, or []any (a
// parenthesized list of the same).
func parseCmdValue(text string, off int) (any, int, error) {
	off = skipCmdSpace(text, off)
	if off >= len(text) {
		return nil, off, badSyntaxf(text, off, "expected a command-argument value, found end of input")
	}

	switch text[off] {
	case '(':
		return parseCmdList(text, off)
	case '"':
		return parseCmdDoubleQuoted(text, off)
	case '\'':
		return parseCmdSingleQuoted(text, off)
	case '{':
		return parseCmdSubQuery(text, off)
	default:
		return parseCmdBareToken(text, off)
	}
}

// parseCmdSubQuery captures a brace-delimited subquery argument
// verbatim: a subquery passed to a command keeps its literal text rather
// than being re-parsed here. Braces nest, so the scan tracks depth
// rather than stopping at the first '}'.
func parseCmdSubQuery(text string, off int) (any, int, error) {
	start := off
	depth := 0
	for off < len(text) {
		switch text[off] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : off+1], off + 1, nil
			}
		}
		off++
	}
	return nil, off, badSyntaxf(text, start, "unterminated { subquery in command arguments")
}

func skipCmdSpace(text string, off int) int {
	for off < len(text) && unicode.IsSpace(rune(text[off])) {
		off++
	}
	return off
}

// parseCmdList parses "( valu, valu, ... )", allowing a trailing comma
// and interior whitespace around commas.
func parseCmdList(text string, off int) (any, int, error) {
	off++ // consume '('
	var items []any
	off = skipCmdSpace(text, off)
	for off < len(text) && text[off] != ')' {
		val, next, err := parseCmdValue(text, off)
		if err != nil {
			return nil, next, err
		}
		items = append(items, val)
		off = skipCmdSpace(text, next)
		if off < len(text) && text[off] == ',' {
			off = skipCmdSpace(text, off+1)
			continue
		}
		break
	}
	if off >= len(text) || text[off] != ')' {
		return nil, off, badSyntaxf(text, off, "unterminated ( list in command arguments")
	}
	off++ // consume ')'
	if items == nil {
		items = []any{}
	}
	return items, off, nil
}

func parseCmdDoubleQuoted(text string, off int) (any, int, error) {
	start := off
	off++ // consume opening quote
	var sb strings.Builder
	for off < len(text) && text[off] != '"' {
		if text[off] == '\\' && off+1 < len(text) {
			off++
			sb.WriteByte(unescapeCmdChar(text[off]))
			off++
			continue
		}
		sb.WriteByte(text[off])
		off++
	}
	if off >= len(text) {
		return nil, off, badSyntaxf(text, start, "unterminated double-quoted string in command arguments")
	}
	off++ // consume closing quote
	return sb.String(), off, nil
}

// parseCmdSingleQuoted parses a single-quoted token with no escape
// processing, matching DOUBLEQUOTEDSTRING/SINGLEQUOTEDSTRING's asymmetry
// elsewhere in this module.
func parseCmdSingleQuoted(text string, off int) (any, int, error) {
	start := off
	off++ // consume opening quote
	bodyStart := off
	for off < len(text) && text[off] != '\'' {
		off++
	}
	if off >= len(text) {
		return nil, off, badSyntaxf(text, start, "unterminated single-quoted string in command arguments")
	}
	body := text[bodyStart:off]
	off++ // consume closing quote
	return body, off, nil
}

// parseCmdBareToken parses an unquoted run of characters up to (but not
// including) whitespace, a comma, or one of "()=[]{}'\"", coercing
// it to an integer when the whole token parses as one.
func parseCmdBareToken(text string, off int) (any, int, error) {
	start := off
	for off < len(text) && !bareTokenStop(rune(text[off])) {
		off++
	}
	if off == start {
		return nil, off, badSyntaxf(text, off, "unexpected character %q in command arguments", rune(text[off]))
	}
	tok := text[start:off]
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return i, off, nil
	}
	return tok, off, nil
}

func unescapeCmdChar(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

// parseStormCmdArgsTuple repeatedly parses command-argument values
// starting at offset 0 until the input is exhausted, returning them as an
// ordered tuple.
func parseStormCmdArgsTuple(text string) ([]any, error) {
	var out []any
	off := skipCmdSpace(text, 0)
	for off < len(text) {
		val, next, err := parseCmdValue(text, off)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
		off = skipCmdSpace(text, next)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// ParseStormCmdArgs parses a full command-argument string into its tuple
// of values. It runs the third parser configuration (same lexer, start
// rule stormcmdargs) and returns the raw tuple from the Const the
// lowering pass emits for that rule.
func ParseStormCmdArgs(text string) ([]any, error) {
	p, err := newCmdArgsParser(text)
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	tree, err := p.parseStormCmdArgs()
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	node, err := lower(tree, text)
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	return node.Value.([]any), nil
}
