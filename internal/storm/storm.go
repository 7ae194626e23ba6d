// Package storm implements a lexer, recursive-descent parser, and
// AST-lowering pass for the Storm graph query language:
// source text goes in, a tagged-union Node tree (or a structured
// BadSyntax diagnostic) comes out.
package storm

import "strings"

// ParseQuery lexes and parses a full Storm query and lowers it to its
// AST form. The input is trimmed of leading and trailing
// whitespace first, so every position in the result is an offset into the
// trimmed text; the returned Query's Text field carries
// that trimmed source. Trivia (whitespace, comments) is discarded before
// parsing; use ParseQueryTree if the concrete parse tree itself (with the
// trivia between statements retained) is needed.
func ParseQuery(text string) (*Node, error) {
	text = strings.TrimSpace(text)
	p, err := newQueryParser(text)
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	tree, err := p.parseQuery()
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	return lower(tree, text)
}

// ParseQueryTree lexes and parses text the same way ParseQuery does, but
// returns the concrete parse tree before lowering, with trivia tokens
// retained as sibling leaves.
func ParseQueryTree(text string) (*parseTree, error) {
	text = strings.TrimSpace(text)
	p, err := newQueryParserKeepAll(text)
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	tree, err := p.parseQuery()
	if err != nil {
		return nil, asBadSyntax(text, err)
	}
	return tree, nil
}

// ParseCmdString parses a single command-argument value starting at byte
// offset off — a parenthesized comma-separated list, a quoted string, or
// a bare token — and returns it together with the offset just past it.
func ParseCmdString(text string, off int) (any, int, error) {
	return parseCmdValue(text, off)
}

// asBadSyntax normalizes any error returned by the tokenizer or parser
// into a BadSyntax, the single error type this package's entry points
// promise to return. A message from a lower layer is
// truncated at its first newline or '!' so only its base line surfaces.
func asBadSyntax(text string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(BadSyntax); ok {
		return err
	}
	mesg := err.Error()
	if i := strings.IndexAny(mesg, "\n!"); i >= 0 {
		mesg = mesg[:i]
	}
	return badSyntaxf(text, len(text), "%s", mesg)
}
