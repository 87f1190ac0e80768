// Command dumpindex prints the records of one part of an on-disk index.
// Sparse parts print one "term,document,score" line per posting; other
// parts print "key<TAB>value" per entry. Lengths and names parts are keyed by
// document, so their keys and range bounds are document numbers.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
)

func main() {
	dir := flag.String("dir", "data/index", "index directory")
	partName := flag.String("part", "", "part to dump (required)")
	start := flag.String("start", "", "first key to include")
	end := flag.String("end", "", "first key to exclude")
	flag.Parse()

	logger.Setup("warn", "text")
	if *partName == "" {
		fmt.Fprintln(os.Stderr, "-part is required")
		flag.Usage()
		os.Exit(2)
	}

	out := bufio.NewWriter(os.Stdout)
	err := dump(out, *dir, *partName, *start, *end)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumpindex: %v\n", err)
		os.Exit(1)
	}
}

func documentKeyed(kind string) bool {
	return kind == index.KindLengths || kind == index.KindNames
}

// bound encodes a range bound given on the command line. Empty is open.
func bound(s string, byDocument bool) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if !byDocument {
		return []byte(s), nil
	}
	doc, err := strconv.Atoi(s)
	if err != nil || doc < 0 {
		return nil, fmt.Errorf("bound %q is not a document number", s)
	}
	return kv.EncodeDocumentKey(doc), nil
}

func dump(w io.Writer, dir, name, start, end string) error {
	m, err := index.ReadManifest(dir)
	if err != nil {
		return err
	}
	var pm *index.PartManifest
	for i := range m.Parts {
		if m.Parts[i].Name == name {
			pm = &m.Parts[i]
		}
	}
	if pm == nil {
		return fmt.Errorf("index %s has no part %q", dir, name)
	}

	byDocument := documentKeyed(pm.Kind)
	from, err := bound(start, byDocument)
	if err != nil {
		return err
	}
	to, err := bound(end, byDocument)
	if err != nil {
		return err
	}

	store, err := segment.Open(filepath.Join(dir, pm.File))
	if err != nil {
		return err
	}
	defer store.Close()

	if pm.Kind == index.KindSparse {
		return dumpRecords(w, sparse.NewReader(store), from, to)
	}
	return dumpEntries(w, store, from, to, byDocument)
}

func dumpRecords(w io.Writer, r *sparse.Reader, start, end []byte) error {
	it, err := r.RecordsIn(start, end)
	if err != nil {
		return err
	}
	for ok := !it.IsDone(); ok; {
		if _, err := fmt.Fprintln(w, it.RecordString()); err != nil {
			return err
		}
		if ok, err = it.NextRecord(); err != nil {
			return err
		}
	}
	return nil
}

func dumpEntries(w io.Writer, store kv.Store, start, end []byte, byDocument bool) error {
	inner, err := store.Iterator()
	if err != nil {
		return err
	}
	keys := kv.NewRangeIterator(inner, start, end)
	for {
		ok, err := keys.NextKey()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		key, err := keys.Key()
		if err != nil {
			return err
		}
		if byDocument {
			doc, err := kv.DecodeDocumentKey([]byte(key))
			if err != nil {
				return err
			}
			key = strconv.Itoa(doc)
		}
		value, err := keys.StringValue()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", key, value); err != nil {
			return err
		}
	}
}
