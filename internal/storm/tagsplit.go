package storm

import "strings"

// file tagsplit.go implements the tag-path interpolation used by
// lower.go's TAG/TAGMATCH terminal lowering: a tag literal's
// '.'-separated segments are normally taken verbatim, but a segment that
// is itself a $variable reference is left as a deferred-evaluation
// marker (a VarValue node) rather than resolved at parse time, since the
// variable's value is only known at runtime.
//
// tagsplit(text, base) takes the raw lexeme (leading '#' optional) and the
// byte offset that lexeme starts at in the source, and returns the ordered
// list of AST nodes a TagName/TagMatch wraps as its kids.
func tagsplit(text string, base int) []*Node {
	body := strings.TrimPrefix(text, "#")
	bodyOffset := base + (len(text) - len(body))

	if !strings.Contains(body, "$") {
		return []*Node{NewLeaf(KindConst, body, bodyOffset, bodyOffset+len(body))}
	}

	segs := strings.Split(body, ".")
	nodes := make([]*Node, 0, len(segs))
	pos := bodyOffset
	for _, seg := range segs {
		start := pos
		end := start + len(seg)
		if strings.HasPrefix(seg, "$") {
			inner := NewLeaf(KindConst, seg[1:], start+1, end)
			nodes = append(nodes, NewNode(KindVarValue, []*Node{inner}))
		} else {
			nodes = append(nodes, NewLeaf(KindConst, seg, start, end))
		}
		pos = end + 1 // skip the '.' separator
	}
	return nodes
}
