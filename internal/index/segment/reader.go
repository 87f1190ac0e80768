package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

type dictEntry struct {
	key       []byte
	offset    int64
	storedLen int
	rawLen    int
}

// Reader serves a segment file as a kv.Store. Keys are resident; values are
// read from the file when an iterator first asks for them.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []dictEntry
}

var _ kv.Store = (*Reader)(nil)

// Open validates the header and footer of path and loads its dictionary.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IO("opening segment file", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, apperrors.IO(fmt.Sprintf("loading segment %s", path), err)
	}
	r.filePath = path
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("file of %d bytes is too small", st.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, err
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", header.Version)
	}
	if header.DictOffset+header.DictSize+int64(FooterSize) != st.Size() {
		return nil, errors.New("dictionary bounds do not match file size")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, errors.New("dictionary checksum mismatch")
	}
	if binary.LittleEndian.Uint32(footer[4:8]) != header.EntryCount {
		return nil, errors.New("footer entry count does not match header")
	}

	dict, err := parseDict(dictBytes, int(header.EntryCount), header.DataSize)
	if err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{file: f, header: header, dict: dict}, nil
}

func parseDict(b []byte, count int, dataSize int64) ([]dictEntry, error) {
	dict := make([]dictEntry, 0, count)
	next := func() (uint64, error) {
		v, n := binary.Uvarint(b)
		if n <= 0 {
			return 0, errors.New("truncated varint")
		}
		b = b[n:]
		return v, nil
	}
	for i := 0; i < count; i++ {
		var fields [4]uint64
		keyLen, err := next()
		if err != nil {
			return nil, err
		}
		if uint64(len(b)) < keyLen {
			return nil, errors.New("truncated key")
		}
		key := b[:keyLen]
		b = b[keyLen:]
		for j := 1; j < 4; j++ {
			if fields[j], err = next(); err != nil {
				return nil, err
			}
		}
		e := dictEntry{key: key, offset: int64(fields[1]), storedLen: int(fields[2]), rawLen: int(fields[3])}
		if e.offset+int64(e.storedLen) > dataSize {
			return nil, fmt.Errorf("entry %d extends past the data section", i)
		}
		dict = append(dict, e)
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%d trailing dictionary bytes", len(b))
	}
	return dict, nil
}

func (r *Reader) Iterator() (kv.KeyIterator, error) {
	return kv.NewSortedIterator(r), nil
}

// Len is the number of entries.
func (r *Reader) Len() int { return len(r.dict) }

func (r *Reader) KeyAt(i int) []byte { return r.dict[i].key }

func (r *Reader) ValueAt(i int) ([]byte, error) {
	e := r.dict[i]
	stored := make([]byte, e.storedLen)
	if _, err := r.file.ReadAt(stored, r.header.DataOffset+e.offset); err != nil {
		return nil, fmt.Errorf("reading value for key %q: %w", e.key, err)
	}
	return decompressValue(stored, e.rawLen, r.header.Compression)
}

func (r *Reader) Header() Header { return r.header }

func (r *Reader) Path() string { return r.filePath }

func (r *Reader) Close() error {
	return r.file.Close()
}
