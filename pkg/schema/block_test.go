package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockBehaviorBuilders(t *testing.T) {
	assert.False(t, NoBlock.IsBlock())
	assert.Equal(t, BlockBehavior{Kind: BlockStart, Pairing: "if"}, StartOf(PairingIf))
	assert.Equal(t, BlockMiddle, MiddleOf(PairingIf).Kind)
	assert.True(t, EndOf(PairingLoop).IsBlock())
	assert.Equal(t, "end", BlockEnd.String())
	assert.Equal(t, "unknown", BlockKind(42).String())
}
