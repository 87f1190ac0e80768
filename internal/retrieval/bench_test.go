package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/counts"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
)

// benchIndex holds numDocs documents. Term tN occurs in every N-th document.
func benchIndex(b *testing.B, numDocs int) *index.Index {
	b.Helper()
	postings := map[string][]sparse.Posting{}
	occurrences := map[string][]counts.Posting{}
	lengths := map[int]int{}
	for d := 0; d < numDocs; d++ {
		lengths[d] = 100
		for _, n := range []int{2, 3, 7} {
			if d%n != 0 {
				continue
			}
			term := fmt.Sprintf("t%d", n)
			postings[term] = append(postings[term], sparse.Posting{Document: d, Score: float32(d%97) / 97})
			occurrences[term] = append(occurrences[term], counts.Posting{Document: d, Occurrences: d%5 + 1})
		}
	}
	sp, err := index.SparseEntries(postings)
	if err != nil {
		b.Fatal(err)
	}
	cn, err := index.CountsEntries(occurrences)
	if err != nil {
		b.Fatal(err)
	}
	var parts []index.Part
	for _, p := range []struct {
		name, kind string
		entries    []kv.Entry
	}{
		{"postings", index.KindSparse, sp},
		{"counts", index.KindCounts, cn},
		{"lengths", index.KindLengths, index.LengthEntries(lengths)},
	} {
		part, err := index.MemPart(p.name, p.kind, p.entries)
		if err != nil {
			b.Fatal(err)
		}
		parts = append(parts, part)
	}
	x, err := index.New(parts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = x.Close() })
	return x
}

func transformed(b *testing.B, r *Retrieval, text, queryType string) *query.Node {
	b.Helper()
	node, err := r.ParseQuery(text, nil)
	if err != nil {
		b.Fatal(err)
	}
	node, err = r.TransformQuery(node, queryType)
	if err != nil {
		b.Fatal(err)
	}
	return node
}

func BenchmarkRankedQuery(b *testing.B) {
	for _, numDocs := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			r := New(benchIndex(b, numDocs), params.Parameters{})
			node := transformed(b, r, "#combine( t2 t3 t7 )", features.Ranked)
			p := params.Parameters{params.Requested: "100"}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.RunRankedQuery(ctx, node, p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBooleanQuery(b *testing.B) {
	r := New(benchIndex(b, 100000), params.Parameters{})
	node := transformed(b, r, "#and( t2 #not( t3 ) )", features.Boolean)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.RunBooleanQuery(ctx, node, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCount(b *testing.B) {
	r := New(benchIndex(b, 100000), params.Parameters{})
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Count(ctx, "t7"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseQuery(b *testing.B) {
	r := New(benchIndex(b, 10), params.Parameters{})
	queries := map[string]string{
		"term":    "t2",
		"combine": "#combine( t2 t3 t7 )",
		"nested":  "#and( t2 #or( t3 #not( t7 ) ) )",
	}
	for name, text := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := r.ParseQuery(text, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
