package docset

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/iterator"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T) *Reader {
	t.Helper()
	even, err := Encode(2, 4)
	require.NoError(t, err)
	s, err := kv.NewMemStore([]kv.Entry{{Key: []byte("even"), Value: even}})
	require.NoError(t, err)
	return NewReader(s)
}

func TestDocsetIndicator(t *testing.T) {
	it, err := newReader(t).Iterator(query.Leaf(Operator, "even"))
	require.NoError(t, err)
	require.NotNil(t, it.Indicator)
	assert.Equal(t, int64(2), it.TotalCandidates())

	assert.Equal(t, 2, it.CurrentCandidate())
	assert.True(t, it.Indicator.Indicates(2))
	assert.False(t, it.Indicator.Indicates(3))

	require.NoError(t, it.MovePast(2))
	assert.Equal(t, 4, it.CurrentCandidate())
	require.NoError(t, it.MoveTo(3))
	assert.Equal(t, 4, it.CurrentCandidate())
	require.NoError(t, it.Next())
	assert.True(t, it.IsDone())
	assert.Equal(t, iterator.Done, it.CurrentCandidate())

	require.NoError(t, it.Reset())
	assert.Equal(t, 2, it.CurrentCandidate())
}

func TestUnknownSetIsEmpty(t *testing.T) {
	it, err := newReader(t).Iterator(query.Leaf(Operator, "odd"))
	require.NoError(t, err)
	assert.True(t, it.IsDone())
}

func TestEncodeRejectsNegative(t *testing.T) {
	_, err := Encode(-1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}
