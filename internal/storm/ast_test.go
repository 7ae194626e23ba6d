package storm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Node_Equal(t *testing.T) {
	assert := assert.New(t)

	a := NewNode(KindAndCond, []*Node{
		NewLeaf(KindConst, int64(1), 0, 1),
		NewLeaf(KindConst, int64(2), 4, 5),
	})
	b := NewNode(KindAndCond, []*Node{
		NewLeaf(KindConst, int64(1), 100, 101),
		NewLeaf(KindConst, int64(2), 104, 105),
	})

	assert.True(a.Equal(b), "position metadata must not affect structural equality")

	c := NewNode(KindAndCond, []*Node{
		NewLeaf(KindConst, int64(1), 0, 1),
		NewLeaf(KindConst, int64(3), 4, 5),
	})
	assert.False(a.Equal(c))
}

func Test_Node_Equal_flags(t *testing.T) {
	assert := assert.New(t)

	a := NewLeaf(KindTagName, "foo", 0, 3)
	b := NewLeaf(KindTagName, "foo", 0, 3)
	assert.True(a.Equal(b))

	a.IsJoin = true
	assert.False(a.Equal(b))
}

func Test_Node_Equal_nil(t *testing.T) {
	assert := assert.New(t)

	var a, b *Node
	assert.True(a.Equal(b))

	c := NewLeaf(KindConst, int64(1), 0, 1)
	assert.False(a.Equal(c))
	assert.False(c.Equal(a))
}

func Test_Node_String_treeShape(t *testing.T) {
	assert := assert.New(t)

	n := NewNode(KindAndCond, []*Node{
		NewLeaf(KindConst, int64(1), 0, 1),
		NewLeaf(KindConst, int64(2), 1, 2),
	})

	out := n.String()
	assert.Contains(out, "AndCond")
	assert.Contains(out, "├─")
	assert.Contains(out, "└─")
}

func Test_Kind_String_unknown(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Kind(9999)", Kind(9999).String())
}
