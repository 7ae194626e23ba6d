package storm

import (
	"fmt"
	"strings"

	"github.com/dekarrin/rosed"
)

// Kind is the closed set of AST node variants produced by the lowering
// pass. The set is never extended at runtime: every
// parse-tree rule and every semantically significant terminal maps to
// exactly one Kind.
type Kind int

const (
	KindInvalid Kind = iota

	// terminals (leaf-bearing)
	KindAbsProp
	KindConst
	KindTagMatch
	KindTagName
	KindBreakOper
	KindContinueOper

	// structural (rule-derived)
	KindAbsPropCond
	KindAndCond
	KindSubqCond
	KindDollarExpr
	KindEditNodeAdd
	KindEditParens
	KindEditPropDel
	KindEditPropSet
	KindEditTagAdd
	KindEditTagDel
	KindEditTagPropSet
	KindEditTagPropDel
	KindEditUnivDel
	KindExprNode
	KindUnaryExprNode
	KindFiltOper
	KindForLoop
	KindWhileLoop
	KindFormPivot
	KindPivotOut
	KindPivotIn
	KindPivotInFrom
	KindPivotToTags
	KindHasAbsPropCond
	KindHasRelPropCond
	KindHasTagPropCond
	KindIfStmt
	KindIfClause
	KindCallKwarg
	KindLiftTag
	KindLiftFormTag
	KindLiftProp
	KindLiftPropBy
	KindLiftTagTag
	KindLiftTagProp
	KindLiftFormTagProp
	KindLiftOnlyTagProp
	KindNotCond
	KindVarListSetOper
	KindOrCond
	KindQuery
	KindRelProp
	KindRelPropCond
	KindRelPropValue
	KindTagCond
	KindTagValue
	KindTagPropValue
	KindTagValuCond
	KindTagPropCond
	KindVarSetOper
	KindVarDeref
	KindVarEvalOper
	KindVarValue
	KindUnivProp
	KindUnivPropValue
	KindFuncCall
	KindCallArgs
	KindCallKwargs
	KindCaseEntry
	KindSwitchCase
	KindSubQuery
	KindList
	KindVarList
	KindCmdOper
	KindTagProp
	KindFormTagProp
	KindOnlyTagProp

	// produced only by the relative-property pivot lowering
	// (lowerOperRelProp), which keeps its own pair of kinds distinct from
	// the form pivots.
	KindPropPivot
	KindPropPivotOut
)

var kindNames = map[Kind]string{
	KindInvalid:         "Invalid",
	KindAbsProp:         "AbsProp",
	KindConst:           "Const",
	KindTagMatch:        "TagMatch",
	KindTagName:         "TagName",
	KindBreakOper:       "BreakOper",
	KindContinueOper:    "ContinueOper",
	KindAbsPropCond:     "AbsPropCond",
	KindAndCond:         "AndCond",
	KindSubqCond:        "SubqCond",
	KindDollarExpr:      "DollarExpr",
	KindEditNodeAdd:     "EditNodeAdd",
	KindEditParens:      "EditParens",
	KindEditPropDel:     "EditPropDel",
	KindEditPropSet:     "EditPropSet",
	KindEditTagAdd:      "EditTagAdd",
	KindEditTagDel:      "EditTagDel",
	KindEditTagPropSet:  "EditTagPropSet",
	KindEditTagPropDel:  "EditTagPropDel",
	KindEditUnivDel:     "EditUnivDel",
	KindExprNode:        "ExprNode",
	KindUnaryExprNode:   "UnaryExprNode",
	KindFiltOper:        "FiltOper",
	KindForLoop:         "ForLoop",
	KindWhileLoop:       "WhileLoop",
	KindFormPivot:       "FormPivot",
	KindPivotOut:        "PivotOut",
	KindPivotIn:         "PivotIn",
	KindPivotInFrom:     "PivotInFrom",
	KindPivotToTags:     "PivotToTags",
	KindHasAbsPropCond:  "HasAbsPropCond",
	KindHasRelPropCond:  "HasRelPropCond",
	KindHasTagPropCond:  "HasTagPropCond",
	KindIfStmt:          "IfStmt",
	KindIfClause:        "IfClause",
	KindCallKwarg:       "CallKwarg",
	KindLiftTag:         "LiftTag",
	KindLiftFormTag:     "LiftFormTag",
	KindLiftProp:        "LiftProp",
	KindLiftPropBy:      "LiftPropBy",
	KindLiftTagTag:      "LiftTagTag",
	KindLiftTagProp:     "LiftTagProp",
	KindLiftFormTagProp: "LiftFormTagProp",
	KindLiftOnlyTagProp: "LiftOnlyTagProp",
	KindNotCond:         "NotCond",
	KindVarListSetOper:  "VarListSetOper",
	KindOrCond:          "OrCond",
	KindQuery:           "Query",
	KindRelProp:         "RelProp",
	KindRelPropCond:     "RelPropCond",
	KindRelPropValue:    "RelPropValue",
	KindTagCond:         "TagCond",
	KindTagValue:        "TagValue",
	KindTagPropValue:    "TagPropValue",
	KindTagValuCond:     "TagValuCond",
	KindTagPropCond:     "TagPropCond",
	KindVarSetOper:      "VarSetOper",
	KindVarDeref:        "VarDeref",
	KindVarEvalOper:     "VarEvalOper",
	KindVarValue:        "VarValue",
	KindUnivProp:        "UnivProp",
	KindUnivPropValue:   "UnivPropValue",
	KindFuncCall:        "FuncCall",
	KindCallArgs:        "CallArgs",
	KindCallKwargs:      "CallKwargs",
	KindCaseEntry:       "CaseEntry",
	KindSwitchCase:      "SwitchCase",
	KindSubQuery:        "SubQuery",
	KindList:            "List",
	KindVarList:         "VarList",
	KindCmdOper:         "CmdOper",
	KindTagProp:         "TagProp",
	KindFormTagProp:     "FormTagProp",
	KindOnlyTagProp:     "OnlyTagProp",
	KindPropPivot:       "PropPivot",
	KindPropPivotOut:    "PropPivotOut",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is the single tagged-union representation of every AST variant:
// a kind, an ordered list of children, an
// optional primitive value, and a small set of optional per-variant flags.
// Nodes are immutable after construction and have value semantics owned by
// the caller.
type Node struct {
	Kind Kind
	Kids []*Node

	// Value holds a primitive or tuple-of-primitives for leaf-like nodes:
	// string, int64, float64, or []any. ExprNode and UnaryExprNode, which
	// have Kids, also use it: it carries the operator's literal text
	// (e.g. "==", "+", "not"), the one piece of information their shared
	// rule name doesn't disambiguate on its own.
	Value any

	// Start and End are end-exclusive byte offsets into the trimmed source
	// text this node was derived from.
	Start int
	End   int

	// IsJoin is set on pivot variants produced from a "join" grammar
	// alternative.
	IsJoin bool

	// HasYield is true iff a SubQuery's braces were preceded by the yield
	// keyword.
	HasYield bool

	// Text holds a SubQuery's verbatim source text.
	Text string
}

// NewLeaf constructs a value-bearing leaf node.
func NewLeaf(kind Kind, value any, start, end int) *Node {
	return &Node{Kind: kind, Value: value, Start: start, End: end}
}

// NewNode constructs a structural node from already-lowered children,
// deriving its position from the span of its first and last child when
// children are present.
func NewNode(kind Kind, kids []*Node) *Node {
	n := &Node{Kind: kind, Kids: kids}
	if len(kids) > 0 {
		n.Start = kids[0].Start
		n.End = kids[len(kids)-1].End
	}
	return n
}

// String renders a prettified tree suitable for structural comparison in
// tests; two ASTs built from the same semantics produce identical output
// regardless of exact source spelling (modulo position metadata).
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	n.writeTree(&sb, "", "")
	return sb.String()
}

func (n *Node) writeTree(sb *strings.Builder, firstPrefix, contPrefix string) {
	sb.WriteString(firstPrefix)
	sb.WriteString(n.Kind.String())
	if n.Value != nil {
		fmt.Fprintf(sb, " %#v", n.Value)
	}
	if n.IsJoin {
		sb.WriteString(" isjoin")
	}
	if n.HasYield {
		sb.WriteString(" hasyield")
	}

	for i, kid := range n.Kids {
		sb.WriteRune('\n')
		var nextFirst, nextCont string
		if i+1 < len(n.Kids) {
			nextFirst = contPrefix + "├─ "
			nextCont = contPrefix + "│  "
		} else {
			nextFirst = contPrefix + "└─ "
			nextCont = contPrefix + "   "
		}
		kid.writeTree(sb, nextFirst, nextCont)
	}
}

// Dump renders the tree wrapped to the given terminal width.
func (n *Node) Dump(width int) string {
	return rosed.Edit(n.String()).Wrap(width).String()
}

// Equal reports whether two nodes are structurally identical: same kind,
// same value, same flags, and recursively equal children. Position metadata
// is deliberately excluded: equality compares structure, not provenance.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind != o.Kind || n.IsJoin != o.IsJoin || n.HasYield != o.HasYield {
		return false
	}
	if !equalValue(n.Value, o.Value) {
		return false
	}
	if len(n.Kids) != len(o.Kids) {
		return false
	}
	for i := range n.Kids {
		if !n.Kids[i].Equal(o.Kids[i]) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValue(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
