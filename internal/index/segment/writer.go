// Package segment stores a sorted key/value part in a single immutable file.
//
// Layout (little-endian):
//
//	header  64 bytes  magic, version, entry count, compression, created-at,
//	                  dictionary offset/size, data offset/size
//	data              values, each optionally compressed
//	dict              per entry: uvarint keyLen, key, uvarint offset,
//	                  uvarint storedLen, uvarint rawLen
//	footer  16 bytes  crc32 of dict, entry count
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x52545356 // "RTSV"
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
)

// Header is the fixed header written at the start of every segment.
type Header struct {
	Magic       uint32
	Version     uint32
	EntryCount  uint32
	Compression Compression
	CreatedAt   int64
	DictOffset  int64
	DictSize    int64
	DataOffset  int64
	DataSize    int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.EntryCount)
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.Compression))
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DataOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DataSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		EntryCount:  binary.LittleEndian.Uint32(b[8:12]),
		Compression: Compression(binary.LittleEndian.Uint32(b[12:16])),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[16:24])),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[24:32])),
		DictSize:    int64(binary.LittleEndian.Uint64(b[32:40])),
		DataOffset:  int64(binary.LittleEndian.Uint64(b[40:48])),
		DataSize:    int64(binary.LittleEndian.Uint64(b[48:56])),
	}
}

// Writer serialises sorted entries into segment files.
type Writer struct {
	dataDir     string
	compression Compression
}

func NewWriter(dataDir string, compression Compression) *Writer {
	return &Writer{dataDir: dataDir, compression: compression}
}

// Write atomically creates dataDir/name. It writes to a .tmp file first and
// renames on success. Entries must be in strictly increasing key order.
func (w *Writer) Write(name string, entries []kv.Entry) (string, error) {
	if err := kv.CheckSorted(entries); err != nil {
		return "", err
	}
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", apperrors.IO("creating segment directory", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", apperrors.IO("creating temp segment file", err)
	}
	defer f.Close()

	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		EntryCount:  uint32(len(entries)),
		Compression: w.compression,
		CreatedAt:   time.Now().Unix(),
		DataOffset:  int64(HeaderSize),
	}
	if _, err := f.Write(header.encode()); err != nil {
		return "", apperrors.IO("writing header", err)
	}

	var dict []byte
	var offset int64
	for _, e := range entries {
		stored, err := compressValue(e.Value, w.compression)
		if err != nil {
			return "", apperrors.IO(fmt.Sprintf("compressing value for key %q", e.Key), err)
		}
		if _, err := f.Write(stored); err != nil {
			return "", apperrors.IO(fmt.Sprintf("writing value for key %q", e.Key), err)
		}
		dict = binary.AppendUvarint(dict, uint64(len(e.Key)))
		dict = append(dict, e.Key...)
		dict = binary.AppendUvarint(dict, uint64(offset))
		dict = binary.AppendUvarint(dict, uint64(len(stored)))
		dict = binary.AppendUvarint(dict, uint64(len(e.Value)))
		offset += int64(len(stored))
	}
	header.DataSize = offset
	header.DictOffset = header.DataOffset + header.DataSize
	header.DictSize = int64(len(dict))

	if _, err := f.Write(dict); err != nil {
		return "", apperrors.IO("writing dictionary", err)
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dict))
	binary.LittleEndian.PutUint32(footer[4:8], header.EntryCount)
	if _, err := f.Write(footer); err != nil {
		return "", apperrors.IO("writing footer", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return "", apperrors.IO("updating header", err)
	}
	if err := f.Sync(); err != nil {
		return "", apperrors.IO("syncing segment file", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", apperrors.IO("renaming segment file", err)
	}
	return finalPath, nil
}
