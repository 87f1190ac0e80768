package counts

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T) *Reader {
	t.Helper()
	cat, err := Encode([]Posting{{2, 1}, {4, 2}, {7, 1}})
	require.NoError(t, err)
	dog, err := Encode([]Posting{{3, 5}})
	require.NoError(t, err)
	s, err := kv.NewMemStore([]kv.Entry{
		{Key: []byte("cat"), Value: cat},
		{Key: []byte("dog"), Value: dog},
	})
	require.NoError(t, err)
	return NewReader(s)
}

func TestCountsIterator(t *testing.T) {
	it, err := newReader(t).Counts("cat")
	require.NoError(t, err)

	assert.Equal(t, int64(3), it.TotalEntries())
	assert.Equal(t, int64(4), it.TotalOccurrences())

	var docs, occurrences []int
	for !it.IsDone() {
		docs = append(docs, it.CurrentCandidate())
		occurrences = append(occurrences, it.Count())
		require.NoError(t, it.MovePast(it.CurrentCandidate()))
	}
	assert.Equal(t, []int{2, 4, 7}, docs)
	assert.Equal(t, []int{1, 2, 1}, occurrences)
	assert.Equal(t, 0, it.Count())

	require.NoError(t, it.Reset())
	require.NoError(t, it.MoveTo(5))
	assert.True(t, it.HasMatch(7))
}

func TestUnknownTerm(t *testing.T) {
	it, err := newReader(t).Counts("eel")
	require.NoError(t, err)
	assert.True(t, it.IsDone())
	assert.Equal(t, int64(0), it.TotalOccurrences())
}

func TestEncodeValidation(t *testing.T) {
	_, err := Encode([]Posting{{1, 0}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	_, err = Encode([]Posting{{4, 1}, {4, 1}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestReaderCapabilities(t *testing.T) {
	it, err := newReader(t).Iterator(query.Leaf(Operator, "dog"))
	require.NoError(t, err)
	assert.NotNil(t, it.Counter)
	assert.NotNil(t, it.Aggregate)
	assert.Nil(t, it.Scorer)
	assert.Equal(t, 5, it.Counter.Count())

	_, err = newReader(t).Iterator(query.Leaf("scores", "dog"))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))
}
