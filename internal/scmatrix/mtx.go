package scmatrix

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Triplets holds a Matrix Market coordinate matrix as read from disk, before
// orientation and labelling. Rows and Cols are the declared dimensions;
// indices in Entries are zero-based.
type Triplets struct {
	Rows, Cols int
	Entries    []Triplet
}

// Triplet is one coordinate entry.
type Triplet struct {
	Row, Col int
	Value    float64
}

// ReadMTX reads a Matrix Market coordinate file ("%%MatrixMarket matrix
// coordinate integer|real general"). Pattern and symmetric variants are not
// produced by expression pipelines and are rejected.
func ReadMTX(path string) (*Triplets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<20)

	if !sc.Scan() {
		return nil, fmt.Errorf("matrix file %s: missing header", path)
	}
	header := strings.Fields(strings.ToLower(sc.Text()))
	if len(header) < 4 || header[0] != "%%matrixmarket" || header[1] != "matrix" || header[2] != "coordinate" {
		return nil, fmt.Errorf("matrix file %s: not a coordinate MatrixMarket file", path)
	}
	if header[3] != "integer" && header[3] != "real" {
		return nil, fmt.Errorf("matrix file %s: unsupported field type %q", path, header[3])
	}
	if len(header) > 4 && header[4] != "general" {
		return nil, fmt.Errorf("matrix file %s: unsupported symmetry %q", path, header[4])
	}

	// Skip comment lines, then read the size line.
	var sizeLine string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		sizeLine = line
		break
	}
	if sizeLine == "" {
		return nil, fmt.Errorf("matrix file %s: missing size line", path)
	}
	fields := strings.Fields(sizeLine)
	if len(fields) != 3 {
		return nil, fmt.Errorf("matrix file %s: malformed size line %q", path, sizeLine)
	}
	rows, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("matrix file %s: bad row count: %w", path, err)
	}
	cols, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("matrix file %s: bad column count: %w", path, err)
	}
	nnz, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("matrix file %s: bad entry count: %w", path, err)
	}

	t := &Triplets{Rows: rows, Cols: cols, Entries: make([]Triplet, 0, nnz)}
	lineNo := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		lineNo++
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("matrix file %s: malformed entry %q", path, line)
		}
		r, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("matrix file %s entry %d: bad row index: %w", path, lineNo, err)
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("matrix file %s entry %d: bad column index: %w", path, lineNo, err)
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("matrix file %s entry %d: bad value: %w", path, lineNo, err)
		}
		if r < 1 || r > rows || c < 1 || c > cols {
			return nil, fmt.Errorf("matrix file %s entry %d: index (%d,%d) outside %dx%d", path, lineNo, r, c, rows, cols)
		}
		t.Entries = append(t.Entries, Triplet{Row: r - 1, Col: c - 1, Value: v})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read matrix file %s: %w", path, err)
	}
	if len(t.Entries) != nnz {
		return nil, fmt.Errorf("matrix file %s: declared %d entries, found %d", path, nnz, len(t.Entries))
	}
	return t, nil
}
