package storm

import (
	"fmt"
	"strings"
)

// file parsetree.go defines the generic concrete parse tree produced by
// parser.go, prior to lowering: every node is either a named rule with
// ordered children or a terminal leaf carrying its token.

// parseTree is a single node in the concrete parse tree: a production
// rule with its matched children, or (when tok is non-nil) a terminal
// leaf.
type parseTree struct {
	rule string
	kids []*parseTree
	tok  *token
}

func leafTree(tok token) *parseTree {
	return &parseTree{rule: tok.id, tok: &tok}
}

func ruleTree(rule string, kids ...*parseTree) *parseTree {
	return &parseTree{rule: rule, kids: kids}
}

// isTerminal reports whether this node is a lexical leaf rather than a
// grammar rule.
func (p *parseTree) isTerminal() bool {
	return p.tok != nil
}

// text returns the source text spanned by this node: the token's literal
// text for a leaf, or the concatenation-by-position (first..last child)
// for a rule.
func (p *parseTree) text(src string) string {
	if p.isTerminal() {
		return p.tok.text
	}
	if len(p.kids) == 0 {
		return ""
	}
	start, end := p.span()
	return src[start:end]
}

// span returns the end-exclusive byte range this node covers. Synthetic
// zero-width markers (the trailing _join annotation) are skipped so they
// never drag a rule's range down to zero.
func (p *parseTree) span() (int, int) {
	if p.isTerminal() {
		return p.tok.start, p.tok.end
	}
	var start, end int
	found := false
	for _, k := range p.kids {
		if k.rule == "_join" {
			continue
		}
		ks, ke := k.span()
		if !found {
			start = ks
			found = true
		}
		end = ke
	}
	return start, end
}

// String renders a tree diagram in the same "├─ / └─" style as ast.go's
// Node.String, so parse trees and lowered ASTs are visually comparable
// during development.
func (p *parseTree) String() string {
	var sb strings.Builder
	p.writeTree(&sb, "", "")
	return sb.String()
}

func (p *parseTree) writeTree(sb *strings.Builder, firstPrefix, contPrefix string) {
	sb.WriteString(firstPrefix)
	if p.isTerminal() {
		fmt.Fprintf(sb, "%s %q", p.tok.id, p.tok.text)
	} else {
		sb.WriteString(p.rule)
	}

	for i, kid := range p.kids {
		sb.WriteRune('\n')
		var nextFirst, nextCont string
		if i+1 < len(p.kids) {
			nextFirst = contPrefix + "├─ "
			nextCont = contPrefix + "│  "
		} else {
			nextFirst = contPrefix + "└─ "
			nextCont = contPrefix + "   "
		}
		kid.writeTree(sb, nextFirst, nextCont)
	}
}
