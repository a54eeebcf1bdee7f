package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
)

var (
	// ErrMissingSource marks a required input file that does not exist.
	ErrMissingSource = errors.New("required source file missing")
	// ErrEmptyMatrix is returned when a triple or ratings text holds no
	// parsable row.
	ErrEmptyMatrix = errors.New("no parsable rows")
)

const maxLineSize = 1 << 20

// ReadStats counts the lines seen while reading a file. Skipped lines were
// malformed and ignored.
type ReadStats struct {
	Lines   int
	Skipped int
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
		}
		return nil, err
	}
	return f, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	return s
}

// ReadInteractions reads a tab-separated (user, item, weight) file with one
// header line. Rows with fewer than three columns or non-integer fields are
// skipped. The header is returned so a filtered copy can be written back.
func ReadInteractions(path string) ([]common.Interaction, string, ReadStats, error) {
	f, err := open(path)
	if err != nil {
		return nil, "", ReadStats{}, err
	}
	defer f.Close()
	return ParseInteractions(f)
}

// ParseInteractions is ReadInteractions over an arbitrary reader.
func ParseInteractions(r io.Reader) ([]common.Interaction, string, ReadStats, error) {
	var (
		stats  ReadStats
		header string
		rows   []common.Interaction
	)

	s := newScanner(r)
	if s.Scan() {
		header = s.Text()
	}
	for s.Scan() {
		stats.Lines++
		parts := strings.Split(strings.TrimSpace(s.Text()), "\t")
		if len(parts) < 3 {
			stats.Skipped++
			continue
		}
		user, errU := strconv.Atoi(parts[0])
		item, errI := strconv.Atoi(parts[1])
		weight, errW := strconv.Atoi(parts[2])
		if errU != nil || errI != nil || errW != nil {
			stats.Skipped++
			continue
		}
		rows = append(rows, common.Interaction{User: user, Item: item, Weight: weight})
	}
	if err := s.Err(); err != nil {
		return nil, "", stats, err
	}
	return rows, header, stats, nil
}

// WriteInteractions writes rows in the raw (user, item, weight) layout
// below the given header line.
func WriteInteractions(path, header string, rows []common.Interaction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeInteractions(w, header, rows); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCatalog returns the item ids of a tab-separated catalog in file
// order. The first line is a header; rows whose first column is not an
// integer are skipped.
func ReadCatalog(path string) ([]int, ReadStats, error) {
	f, err := open(path)
	if err != nil {
		return nil, ReadStats{}, err
	}
	defer f.Close()

	var (
		stats ReadStats
		ids   []int
	)
	s := newScanner(f)
	s.Scan()
	for s.Scan() {
		stats.Lines++
		first, _, _ := strings.Cut(strings.TrimSpace(s.Text()), "\t")
		id, err := strconv.Atoi(first)
		if err != nil {
			stats.Skipped++
			continue
		}
		ids = append(ids, id)
	}
	return ids, stats, s.Err()
}

// ReadMatrix parses a whitespace-separated integer table such as
// kg_final.txt or ratings_final.txt.
func ReadMatrix(path string) (common.Matrix, ReadStats, error) {
	f, err := open(path)
	if err != nil {
		return common.Matrix{}, ReadStats{}, err
	}
	defer f.Close()
	return ParseMatrix(f)
}

// ParseMatrix reads an integer table without header. Rows must have 3 or
// 4 fields; the first parsable row fixes the column count. Rows with
// another width or a non-integer field are skipped. Blank lines are
// ignored.
func ParseMatrix(r io.Reader) (common.Matrix, ReadStats, error) {
	var (
		stats ReadStats
		m     common.Matrix
	)
	s := newScanner(r)
	row := make([]int32, 0, 4)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		stats.Lines++
		if !common.ValidCols(len(fields)) || (m.Cols != 0 && len(fields) != m.Cols) {
			stats.Skipped++
			continue
		}

		row = row[:0]
		ok := true
		for _, field := range fields {
			v, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				ok = false
				break
			}
			row = append(row, int32(v))
		}
		if !ok {
			stats.Skipped++
			continue
		}
		if m.Cols == 0 {
			m.Cols = len(row)
		}
		m.Data = append(m.Data, row...)
	}
	if err := s.Err(); err != nil {
		return common.Matrix{}, stats, err
	}
	if m.Rows() == 0 {
		return common.Matrix{}, stats, ErrEmptyMatrix
	}
	return m, stats, nil
}

// WriteMatrix writes m as tab-separated text, one row per line.
func WriteMatrix(path string, m common.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeMatrix(w, m); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeInteractions(w io.Writer, header string, rows []common.Interaction) error {
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%d\t%d\t%d\n", row.User, row.Item, row.Weight); err != nil {
			return err
		}
	}
	return nil
}

func writeMatrix(w io.Writer, m common.Matrix) error {
	var line []byte
	for i := range m.Rows() {
		line = line[:0]
		for j, v := range m.Row(i) {
			if j > 0 {
				line = append(line, '\t')
			}
			line = strconv.AppendInt(line, int64(v), 10)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Head returns up to n rows of a tab-separated file, split into fields.
// It is meant for ad-hoc inspection and does no type conversion.
func Head(path string, n int) ([][]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]string
	s := newScanner(f)
	for len(rows) < n && s.Scan() {
		line := strings.TrimRight(s.Text(), "\r\n")
		if line == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows, s.Err()
}
