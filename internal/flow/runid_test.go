package flow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/testutil"
)

func TestUUIDv7Generator_Generate(t *testing.T) {
	gen := UUIDv7Generator{}

	first := gen.Generate()
	second := gen.Generate()

	id, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, first, second)
}

func TestFixedGenerator_InOrder(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestNewTree_UsesRunIDGenerator(t *testing.T) {
	tree := NewTree(counterFlow, WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-42")))
	assert.Equal(t, "run-42", tree.RunID())

	var _ RunIDGenerator = testutil.NewFixedRunIDGenerator("")
}
