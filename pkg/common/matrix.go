package common

import "fmt"

// Matrix is a dense row-major table of integers. It is the in-memory form
// of kg_final.txt and ratings_final.txt and the payload of their binary
// caches.
type Matrix struct {
	Cols int
	Data []int32
}

// Triple and ratings rows carry head, relation and tail (or user, item and
// label), optionally followed by a weight.
const (
	MinCols = 3
	MaxCols = 4
)

// ValidCols reports whether n is a row width the graph files can have.
func ValidCols(n int) bool {
	return n >= MinCols && n <= MaxCols
}

// NewMatrix allocates an empty matrix with capacity for rows rows.
func NewMatrix(cols, rows int) Matrix {
	return Matrix{
		Cols: cols,
		Data: make([]int32, 0, cols*rows),
	}
}

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	if m.Cols == 0 {
		return 0
	}
	return len(m.Data) / m.Cols
}

// Row returns a view of row i.
func (m Matrix) Row(i int) []int32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Append adds a row. The row must have exactly Cols values.
func (m *Matrix) Append(row ...int32) error {
	if len(row) != m.Cols {
		return fmt.Errorf("row has %d columns, matrix has %d", len(row), m.Cols)
	}
	m.Data = append(m.Data, row...)
	return nil
}

// Triple reads row i as a triple. Three-column matrices carry no weight
// column; their triples get weight 1.
func (m Matrix) Triple(i int) Triple {
	row := m.Row(i)
	t := Triple{
		Head:     int(row[0]),
		Relation: Relation(row[1]),
		Tail:     int(row[2]),
		Weight:   1,
	}
	if m.Cols >= 4 {
		t.Weight = int(row[3])
	}
	return t
}

// Rating reads row i of a ratings matrix.
func (m Matrix) Rating(i int) Rating {
	row := m.Row(i)
	return Rating{User: int(row[0]), Item: int(row[1]), Label: int(row[2])}
}

// MaxEntity returns the largest id found in the head and tail columns, or
// -1 for an empty matrix.
func (m Matrix) MaxEntity() int {
	maxID := -1
	for i := range m.Rows() {
		row := m.Row(i)
		maxID = max(maxID, int(row[0]), int(row[2]))
	}
	return maxID
}

// Equal reports whether two matrices hold the same shape and values.
func (m Matrix) Equal(o Matrix) bool {
	if m.Cols != o.Cols || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// TriplesToMatrix packs triples into a four-column matrix.
func TriplesToMatrix(triples []Triple) Matrix {
	m := NewMatrix(4, len(triples))
	for _, t := range triples {
		m.Data = append(m.Data, int32(t.Head), int32(t.Relation), int32(t.Tail), int32(t.Weight))
	}
	return m
}

// RatingsToMatrix packs ratings into a three-column matrix.
func RatingsToMatrix(ratings []Rating) Matrix {
	m := NewMatrix(3, len(ratings))
	for _, r := range ratings {
		m.Data = append(m.Data, int32(r.User), int32(r.Item), int32(r.Label))
	}
	return m
}
