package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []kv.Entry {
	var entries []kv.Entry
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("term%03d", i))
		value := bytes.Repeat([]byte{byte(i)}, i*10)
		entries = append(entries, kv.Entry{Key: key, Value: value})
	}
	return entries
}

func TestWriteOpenRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			dir := t.TempDir()
			entries := testEntries()
			path, err := NewWriter(dir, c).Write("postings.seg", entries)
			require.NoError(t, err)
			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, len(entries), r.Len())
			assert.Equal(t, c, r.Header().Compression)

			it, err := r.Iterator()
			require.NoError(t, err)
			for _, want := range entries {
				ok, err := it.NextKey()
				require.NoError(t, err)
				require.True(t, ok)
				key, err := it.KeyBytes()
				require.NoError(t, err)
				assert.Equal(t, want.Key, key)
				stream, err := it.ValueStream()
				require.NoError(t, err)
				got, err := io.ReadAll(stream)
				require.NoError(t, err)
				assert.Equal(t, len(want.Value), len(got))
				assert.True(t, bytes.Equal(want.Value, got))
			}
			ok, err := it.NextKey()
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSkipToKeyOnSegment(t *testing.T) {
	path, err := NewWriter(t.TempDir(), CompressionLZ4).Write("s.seg", testEntries())
	require.NoError(t, err)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	it, err := r.Iterator()
	require.NoError(t, err)
	found, err := it.SkipToKey([]byte("term0105"))
	require.NoError(t, err)
	assert.False(t, found)
	key, err := it.Key()
	require.NoError(t, err)
	assert.Equal(t, "term011", key)
}

func TestWriteRejectsUnsorted(t *testing.T) {
	_, err := NewWriter(t.TempDir(), CompressionNone).Write("bad.seg", []kv.Entry{
		{Key: []byte("b")}, {Key: []byte("a")},
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestOpenDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(dir, CompressionNone).Write("s.seg", testEntries())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-FooterSize-1] ^= 0xff
	corrupt := filepath.Join(dir, "corrupt.seg")
	require.NoError(t, os.WriteFile(corrupt, data, 0644))

	_, err = Open(corrupt)
	assert.True(t, errors.Is(err, apperrors.ErrStorageIO))

	short := filepath.Join(dir, "short.seg")
	require.NoError(t, os.WriteFile(short, []byte("RTSV"), 0644))
	_, err = Open(short)
	assert.True(t, errors.Is(err, apperrors.ErrStorageIO))

	_, err = Open(filepath.Join(dir, "missing.seg"))
	assert.True(t, errors.Is(err, apperrors.ErrStorageIO))
}

func TestEmptySegment(t *testing.T) {
	path, err := NewWriter(t.TempDir(), CompressionZSTD).Write("empty.seg", nil)
	require.NoError(t, err)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	it, err := r.Iterator()
	require.NoError(t, err)
	assert.True(t, it.IsDone())
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)
	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)
	_, err = ParseCompression("snappy")
	assert.Error(t, err)
}
