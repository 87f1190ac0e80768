// Package sparse stores per-term lists of (document, score) postings and
// decodes them lazily as scoring iterators.
//
// Value layout per term:
//
//	count:uint32 big-endian
//	count x { gap:uvarint, score:float32 big-endian }
//
// Each gap is the difference from the previous document id; the first is
// absolute.
package sparse

import (
	"encoding/binary"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

// Posting is one scored document of a term's list.
type Posting struct {
	Document int
	Score    float32
}

// Encode serialises postings, which must be in strictly increasing document
// order with non-negative ids.
func Encode(postings []Posting) ([]byte, error) {
	buf := make([]byte, 4, 4+len(postings)*6)
	binary.BigEndian.PutUint32(buf, uint32(len(postings)))
	prev := 0
	for i, p := range postings {
		if p.Document < 0 {
			return nil, apperrors.Invalid("posting %d has negative document %d", i, p.Document)
		}
		if i > 0 && p.Document <= prev {
			return nil, apperrors.Invalid("posting %d document %d does not follow %d", i, p.Document, prev)
		}
		buf = binary.AppendUvarint(buf, uint64(p.Document-prev))
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(p.Score))
		prev = p.Document
	}
	return buf, nil
}
