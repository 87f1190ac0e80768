package sparse

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStore(t *testing.T, lists map[string][]Posting, order ...string) kv.Store {
	t.Helper()
	var entries []kv.Entry
	for _, term := range order {
		value, err := Encode(lists[term])
		require.NoError(t, err)
		entries = append(entries, kv.Entry{Key: []byte(term), Value: value})
	}
	s, err := kv.NewMemStore(entries)
	require.NoError(t, err)
	return s
}

func randomPostings(n int) []Posting {
	r := rand.New(rand.NewSource(int64(n)))
	postings := make([]Posting, n)
	doc := 0
	for i := range postings {
		doc += 1 + r.Intn(300)
		postings[i] = Posting{Document: doc, Score: r.Float32()}
	}
	return postings
}

func TestCodecRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 1000} {
		want := randomPostings(n)
		r := NewReader(buildStore(t, map[string][]Posting{"t": want}, "t"))

		it, err := r.Scores("t")
		require.NoError(t, err)
		assert.Equal(t, int64(n), it.TotalCandidates())

		var got []Posting
		prev := -1
		for !it.IsDone() {
			doc := it.CurrentCandidate()
			require.Greater(t, doc, prev)
			prev = doc
			got = append(got, Posting{Document: doc, Score: float32(it.Score(doc, 0))})
			require.NoError(t, it.MovePast(doc))
		}
		if n == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, got)
		}
	}
}

func TestEncodeRejectsNonIncreasing(t *testing.T) {
	_, err := Encode([]Posting{{Document: 3}, {Document: 3}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	_, err = Encode([]Posting{{Document: 5}, {Document: 2}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	_, err = Encode([]Posting{{Document: -1}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func catReader(t *testing.T) *Reader {
	lists := map[string][]Posting{
		"cat": {{1, 0.2}, {5, 0.9}, {9, 0.5}},
		"dog": {{2, 0.4}},
		"eel": {},
		"fox": {{3, 1}, {4, 2}},
	}
	return NewReader(buildStore(t, lists, "cat", "dog", "eel", "fox"))
}

func TestMoveToAndMovePast(t *testing.T) {
	it, err := catReader(t).Scores("cat")
	require.NoError(t, err)

	assert.Equal(t, 1, it.CurrentCandidate())
	require.NoError(t, it.MoveTo(1))
	assert.Equal(t, 1, it.CurrentCandidate())

	require.NoError(t, it.MoveTo(4))
	assert.Equal(t, 5, it.CurrentCandidate())
	assert.True(t, it.HasMatch(5))
	assert.False(t, it.HasMatch(4))

	require.NoError(t, it.MovePast(5))
	assert.Equal(t, 9, it.CurrentCandidate())
	assert.InDelta(t, 0.5, it.Score(9, 100), 1e-6)
	assert.True(t, math.IsInf(it.Score(5, 100), -1))

	found, err := it.SkipToDocument(9)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, it.MovePast(9))
	assert.True(t, it.IsDone())
	assert.False(t, it.HasMatch(9))
	assert.True(t, math.IsInf(it.Score(9, 100), -1))

	require.NoError(t, it.Reset())
	assert.Equal(t, 1, it.CurrentCandidate())
}

func TestUnknownTermIsEmpty(t *testing.T) {
	it, err := catReader(t).Scores("cow")
	require.NoError(t, err)
	assert.True(t, it.IsDone())
	assert.Equal(t, int64(0), it.TotalCandidates())
}

func TestSkipToOnlyReloadsOnExactMatch(t *testing.T) {
	it, err := catReader(t).Scores("cat")
	require.NoError(t, err)
	require.NoError(t, it.MoveTo(5))

	found, err := it.SkipTo([]byte("cow"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 5, it.CurrentCandidate())

	found, err = it.SkipTo([]byte("fox"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, it.CurrentCandidate())
	key, err := it.Key()
	require.NoError(t, err)
	assert.Equal(t, "fox", key)
}

func TestNextRecordDumpsEveryTriple(t *testing.T) {
	it, err := catReader(t).Records()
	require.NoError(t, err)

	var records []string
	for ok := !it.IsDone(); ok; {
		records = append(records, it.RecordString())
		ok, err = it.NextRecord()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"cat,1,0.2", "cat,5,0.9", "cat,9,0.5",
		"dog,2,0.4",
		"fox,3,1", "fox,4,2",
	}, records)
}

func TestRecordsInRange(t *testing.T) {
	it, err := catReader(t).RecordsIn([]byte("d"), []byte("f"))
	require.NoError(t, err)

	var records []string
	for ok := !it.IsDone(); ok; {
		records = append(records, it.RecordString())
		ok, err = it.NextRecord()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"dog,2,0.4"}, records)

	it, err = catReader(t).RecordsIn([]byte("x"), nil)
	require.NoError(t, err)
	assert.True(t, it.IsDone())
}

func TestNextTerm(t *testing.T) {
	it, err := catReader(t).Records()
	require.NoError(t, err)
	ok, err := it.NextTerm()
	require.NoError(t, err)
	require.True(t, ok)
	key, _ := it.Key()
	assert.Equal(t, "dog", key)
	assert.Equal(t, 2, it.CurrentCandidate())
}

func TestTruncatedListIsStorageError(t *testing.T) {
	value, err := Encode([]Posting{{1, 0.5}, {2, 0.5}})
	require.NoError(t, err)
	s, err := kv.NewMemStore([]kv.Entry{{Key: []byte("t"), Value: value[:len(value)-2]}})
	require.NoError(t, err)

	it, err := NewReader(s).Scores("t")
	require.NoError(t, err)
	err = it.MovePast(1)
	assert.True(t, errors.Is(err, apperrors.ErrStorageIO))
}

func TestReaderIterator(t *testing.T) {
	r := catReader(t)
	it, err := r.Iterator(query.Leaf(Operator, "cat"))
	require.NoError(t, err)
	assert.NotNil(t, it.Scorer)
	assert.Nil(t, it.Counter)
	assert.Equal(t, 1, it.CurrentCandidate())
	require.NoError(t, it.Next())
	assert.Equal(t, 5, it.CurrentCandidate())

	_, err = r.Iterator(query.Leaf("counts", "cat"))
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedOperator))
}
