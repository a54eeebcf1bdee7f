package cache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

// ErrBadCache is returned when a cache file cannot be decoded.
var ErrBadCache = errors.New("cache file is corrupt")

var magic = [4]byte{'K', 'G', 'M', '1'}

// header layout: magic, uint32 column count, uint64 row count, all little endian.
const headerSize = 4 + 4 + 8

// Encode writes m in the cache layout: a fixed header followed by the
// row-major int32 values.
func Encode(w io.Writer, m common.Matrix) error {
	var hdr [headerSize]byte
	copy(hdr[:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(m.Cols))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(m.Rows()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, m.Data)
}

// Decode reads a matrix written by Encode. size is the total byte length
// of the input; the header must describe exactly that many bytes.
func Decode(r io.Reader, size int64) (common.Matrix, error) {
	var hdr [headerSize]byte
	if size < headerSize {
		return common.Matrix{}, fmt.Errorf("%w: short header", ErrBadCache)
	}
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return common.Matrix{}, fmt.Errorf("%w: short header", ErrBadCache)
	}
	if [4]byte(hdr[:4]) != magic {
		return common.Matrix{}, fmt.Errorf("%w: bad magic", ErrBadCache)
	}
	cols := binary.LittleEndian.Uint32(hdr[4:8])
	rows := binary.LittleEndian.Uint64(hdr[8:16])
	if !common.ValidCols(int(cols)) {
		return common.Matrix{}, fmt.Errorf("%w: %d columns", ErrBadCache, cols)
	}
	rowBytes := uint64(cols) * 4
	payload := uint64(size - headerSize)
	if payload%rowBytes != 0 || rows != payload/rowBytes {
		return common.Matrix{}, fmt.Errorf("%w: header declares %d rows, file holds %d bytes", ErrBadCache, rows, size)
	}

	m := common.Matrix{Cols: int(cols), Data: make([]int32, int(rows)*int(cols))}
	if err := binary.Read(r, binary.LittleEndian, m.Data); err != nil {
		return common.Matrix{}, fmt.Errorf("%w: %v", ErrBadCache, err)
	}
	return m, nil
}

// ReadFile decodes the cache file at path.
func ReadFile(path string) (common.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return common.Matrix{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return common.Matrix{}, err
	}
	return Decode(bufio.NewReader(f), info.Size())
}

// WriteFile encodes m to path. The data goes to a temporary sibling first
// and is renamed into place, so a crash never leaves a truncated file
// under the canonical name.
func WriteFile(path string, m common.Matrix) error {
	return common.WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, m)
	})
}
