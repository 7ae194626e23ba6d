package storm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// exprNodeOf digs into a `$x = $(...)` query and returns the ExprNode or
// UnaryExprNode value assigned to $x.
func exprNodeOf(t *testing.T, query string) *Node {
	t.Helper()
	assert := assert.New(t)

	n, err := ParseQuery(query)
	if !assert.NoError(err) {
		return nil
	}
	if !assert.Len(n.Kids, 1) {
		return nil
	}
	varset := n.Kids[0]
	if !assert.Equal(KindVarSetOper, varset.Kind) {
		return nil
	}
	if !assert.Len(varset.Kids, 2) {
		return nil
	}
	dollar := varset.Kids[1]
	if !assert.Equal(KindDollarExpr, dollar.Kind) {
		return nil
	}
	if !assert.Len(dollar.Kids, 1) {
		return nil
	}
	return dollar.Kids[0]
}

func Test_ParseQuery_exprNodeComparisonOperatorsAreDistinguishable(t *testing.T) {
	testCases := []struct {
		name string
		expr string
		op   string
	}{
		{name: "equal", expr: `$x = $(1==2)`, op: "=="},
		{name: "not equal", expr: `$x = $(1!=2)`, op: "!="},
		{name: "less than", expr: `$x = $(1<2)`, op: "<"},
		{name: "greater or equal", expr: `$x = $(1>=2)`, op: ">="},
		{name: "plus", expr: `$x = $(1+2)`, op: "+"},
		{name: "minus", expr: `$x = $(1-2)`, op: "-"},
		{name: "and", expr: `$x = $(1 and 2)`, op: "and"},
		{name: "or", expr: `$x = $(1 or 2)`, op: "or"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			node := exprNodeOf(t, tc.expr)
			if node == nil {
				return
			}
			assert.Equal(KindExprNode, node.Kind)
			assert.Equal(tc.op, node.Value)
			assert.Len(node.Kids, 2)
		})
	}
}

func Test_ParseQuery_unaryExprNodePreservesOperator(t *testing.T) {
	assert := assert.New(t)

	node := exprNodeOf(t, `$x = $(not 1)`)
	if node == nil {
		return
	}
	assert.Equal(KindUnaryExprNode, node.Kind)
	assert.Equal("not", node.Value)
	if assert.Len(node.Kids, 1) {
		assert.Equal(KindConst, node.Kids[0].Kind)
	}
}

func Test_ParseQuery_forLoopHasNoKeywordLeak(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery(`for $x in $list { inet:ipv4 }`)
	if !assert.NoError(err) {
		return
	}
	if !assert.Len(n.Kids, 1) {
		return
	}
	loop := n.Kids[0]
	assert.Equal(KindForLoop, loop.Kind)
	// FOR and IN must not appear as leaked children: the bare loop
	// variable lowers to a Const of its name, then iterable, then body.
	if assert.Len(loop.Kids, 3) {
		assert.Equal(KindConst, loop.Kids[0].Kind)
		assert.Equal("x", loop.Kids[0].Value)
		assert.Equal(KindSubQuery, loop.Kids[2].Kind)
	}
}

func Test_lowerTerminal_singleQuotedStringIsRaw(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery(`$x = 'a\nb'`)
	if !assert.NoError(err) {
		return
	}
	if !assert.Len(n.Kids, 1) {
		return
	}
	val := n.Kids[0].Kids[1]
	assert.Equal(KindConst, val.Kind)
	assert.Equal(`a\nb`, val.Value)
}

func Test_lowerTerminal_doubleQuotedStringResolvesEscapes(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery(`$x = "a\nb"`)
	if !assert.NoError(err) {
		return
	}
	if !assert.Len(n.Kids, 1) {
		return
	}
	val := n.Kids[0].Kids[1]
	assert.Equal(KindConst, val.Kind)
	assert.Equal("a\nb", val.Value)
}

func Test_unquote_fullEscapeGrammar(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "newline", input: `"\n"`, want: "\n"},
		{name: "tab", input: `"\t"`, want: "\t"},
		{name: "carriage return", input: `"\r"`, want: "\r"},
		{name: "backslash", input: `"\\"`, want: `\`},
		{name: "double quote", input: `"\""`, want: `"`},
		{name: "single quote", input: `"\'"`, want: "'"},
		{name: "hex byte", input: `"\x41"`, want: "A"},
		{name: "unicode codepoint", input: `"\u0041"`, want: "A"},
		{name: "braced unicode codepoint", input: `"\u{41}"`, want: "A"},
		{name: "braced unicode astral", input: `"\u{1F600}"`, want: "\U0001F600"},
		{name: "unrecognized escape passes through", input: `"\q"`, want: `\q`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tc.want, unquote(tc.input))
		})
	}
}

func Test_unquoteRaw_stripsOnlyDelimiters(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`a\nb`, unquoteRaw(`'a\nb'`))
	assert.Equal("", unquoteRaw("''"))
}

func Test_ParseQuery_liftTagVariants(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		expectKind Kind
		expectKid  Kind
	}{
		{name: "tag of tag", input: "##foo.bar", expectKind: KindLiftTagTag, expectKid: KindTagName},
		{name: "tag glob", input: "#foo.*", expectKind: KindLiftTag, expectKid: KindTagMatch},
		{name: "tag prop", input: "#rep:score", expectKind: KindLiftTagProp, expectKid: KindTagProp},
		{name: "only tag prop", input: "#:score", expectKind: KindLiftOnlyTagProp, expectKid: KindOnlyTagProp},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			n, err := ParseQuery(tc.input)
			if !assert.NoError(err) {
				return
			}
			if !assert.Len(n.Kids, 1) {
				return
			}
			lift := n.Kids[0]
			assert.Equal(tc.expectKind, lift.Kind)
			if assert.NotEmpty(lift.Kids) {
				assert.Equal(tc.expectKid, lift.Kids[0].Kind)
			}
		})
	}
}

func Test_ParseQuery_valueForms(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		expectKind Kind
	}{
		{name: "tag value", input: "$x = #foo", expectKind: KindTagValue},
		{name: "tag prop value", input: "$x = #foo:score", expectKind: KindTagPropValue},
		{name: "univ prop value", input: "$x = .seen", expectKind: KindUnivPropValue},
		{name: "list value", input: "$x = (1, 2, 3)", expectKind: KindList},
		{name: "dollar expr value", input: "$x = $(1 + 2)", expectKind: KindDollarExpr},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			n, err := ParseQuery(tc.input)
			if !assert.NoError(err) {
				return
			}
			set := n.Kids[0]
			if assert.Equal(KindVarSetOper, set.Kind) && assert.Len(set.Kids, 2) {
				assert.Equal(tc.expectKind, set.Kids[1].Kind)
			}
		})
	}
}

func Test_ParseQuery_relPropValueInEdit(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("[ :asn=:asn ]")
	if !assert.NoError(err) {
		return
	}
	set := n.Kids[0].Kids[0]
	assert.Equal(KindEditPropSet, set.Kind)
	if assert.Len(set.Kids, 3) {
		assert.Equal(KindRelProp, set.Kids[0].Kind)
		assert.Equal(KindRelPropValue, set.Kids[2].Kind)
	}
}

func Test_ParseQuery_whileLoop(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("while $x { inet:ipv4 }")
	if !assert.NoError(err) {
		return
	}
	loop := n.Kids[0]
	assert.Equal(KindWhileLoop, loop.Kind)
	if assert.Len(loop.Kids, 2) {
		assert.Equal(KindVarValue, loop.Kids[0].Kind)
		assert.Equal(KindSubQuery, loop.Kids[1].Kind)
	}
}

func Test_ParseQuery_breakContinueHaveNoKids(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("for $x in $l { break } for $y in $l { continue }")
	if !assert.NoError(err) {
		return
	}
	if !assert.Len(n.Kids, 2) {
		return
	}
	brk := n.Kids[0].Kids[2].Kids[0]
	assert.Equal(KindBreakOper, brk.Kind)
	assert.Empty(brk.Kids)
	cont := n.Kids[1].Kids[2].Kids[0]
	assert.Equal(KindContinueOper, cont.Kind)
	assert.Empty(cont.Kids)
}

func Test_ParseQuery_interpolatedTagLift(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("#foo.$bar")
	if !assert.NoError(err) {
		return
	}
	lift := n.Kids[0]
	assert.Equal(KindLiftTag, lift.Kind)
	tag := lift.Kids[0]
	assert.Equal(KindTagMatch, tag.Kind)
	if assert.Len(tag.Kids, 2) {
		assert.Equal(KindConst, tag.Kids[0].Kind)
		assert.Equal("foo", tag.Kids[0].Value)
		assert.Equal(KindVarValue, tag.Kids[1].Kind)
	}
}

func Test_ParseQuery_varValueWrapsConst(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("$x = $foo")
	if !assert.NoError(err) {
		return
	}
	set := n.Kids[0]
	assert.Equal(KindVarSetOper, set.Kind)
	if !assert.Len(set.Kids, 2) {
		return
	}
	// The assignment target is the bare name constant; the value side is
	// a VarValue wrapping its name constant, the same shape an
	// interpolated tag segment produces.
	assert.Equal(KindConst, set.Kids[0].Kind)
	assert.Equal("x", set.Kids[0].Value)
	val := set.Kids[1]
	assert.Equal(KindVarValue, val.Kind)
	assert.Nil(val.Value)
	if assert.Len(val.Kids, 1) {
		assert.Equal(KindConst, val.Kids[0].Kind)
		assert.Equal("foo", val.Kids[0].Value)
	}
}

func Test_ParseQuery_parenCondIsGroupingOnly(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("inet:ipv4 +(:asn=1 or :asn=2)")
	if !assert.NoError(err) {
		return
	}
	if !assert.Len(n.Kids, 2) {
		return
	}
	filt := n.Kids[1]
	assert.Equal(KindFiltOper, filt.Kind)
	if !assert.Len(filt.Kids, 2) {
		return
	}
	// Parentheses group; they must not masquerade as a
	// subquery-existence condition.
	cond := filt.Kids[1]
	assert.Equal(KindOrCond, cond.Kind)
	if assert.Len(cond.Kids, 2) {
		assert.Equal(KindRelPropCond, cond.Kids[0].Kind)
		assert.Equal(KindRelPropCond, cond.Kids[1].Kind)
	}
}

func Test_ParseQuery_subqCondIsBraceForm(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseQuery("inet:ipv4 +{ :asn=1 }")
	if !assert.NoError(err) {
		return
	}
	filt := n.Kids[1]
	assert.Equal(KindFiltOper, filt.Kind)
	cond := filt.Kids[1]
	assert.Equal(KindSubqCond, cond.Kind)
	if assert.Len(cond.Kids, 1) {
		assert.Equal(KindSubQuery, cond.Kids[0].Kind)
	}
}
