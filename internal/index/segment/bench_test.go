package segment

import (
	"fmt"
	"io"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
)

// postingEntries encodes numTerms sparse lists of 500 postings each.
func postingEntries(b *testing.B, numTerms int) []kv.Entry {
	b.Helper()
	entries := make([]kv.Entry, 0, numTerms)
	for t := 0; t < numTerms; t++ {
		postings := make([]sparse.Posting, 500)
		for i := range postings {
			postings[i] = sparse.Posting{Document: i*(t%5+1) + t, Score: float32(i%13) / 13}
		}
		value, err := sparse.Encode(postings)
		if err != nil {
			b.Fatal(err)
		}
		entries = append(entries, kv.Entry{Key: []byte(fmt.Sprintf("term%06d", t)), Value: value})
	}
	return entries
}

func BenchmarkWrite(b *testing.B) {
	entries := postingEntries(b, 1000)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		b.Run(c.String(), func(b *testing.B) {
			dir := b.TempDir()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := NewWriter(dir, c).Write("postings.seg", entries); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkScanValues(b *testing.B) {
	entries := postingEntries(b, 1000)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		b.Run(c.String(), func(b *testing.B) {
			path, err := NewWriter(b.TempDir(), c).Write("postings.seg", entries)
			if err != nil {
				b.Fatal(err)
			}
			r, err := Open(path)
			if err != nil {
				b.Fatal(err)
			}
			defer r.Close()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				it, err := r.Iterator()
				if err != nil {
					b.Fatal(err)
				}
				for {
					ok, err := it.NextKey()
					if err != nil {
						b.Fatal(err)
					}
					if !ok {
						break
					}
					stream, err := it.ValueStream()
					if err != nil {
						b.Fatal(err)
					}
					if _, err := io.Copy(io.Discard, stream); err != nil {
						b.Fatal(err)
					}
				}
			}
		})
	}
}
