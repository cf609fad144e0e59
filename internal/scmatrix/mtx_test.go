package scmatrix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempMTX(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.mtx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadMTX(t *testing.T) {
	t.Parallel()

	path := writeTempMTX(t, `%%MatrixMarket matrix coordinate integer general
% generated fixture
3 2 4
1 1 5
2 1 1
3 2 7
1 2 2
`)
	tr, err := ReadMTX(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Rows)
	assert.Equal(t, 2, tr.Cols)
	require.Len(t, tr.Entries, 4)
	// Indices are converted to zero-based.
	assert.Equal(t, Triplet{Row: 0, Col: 0, Value: 5}, tr.Entries[0])
	assert.Equal(t, Triplet{Row: 2, Col: 1, Value: 7}, tr.Entries[2])
}

func TestReadMTXRealValues(t *testing.T) {
	t.Parallel()

	path := writeTempMTX(t, `%%MatrixMarket matrix coordinate real general
2 2 1
2 1 0.5
`)
	tr, err := ReadMTX(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tr.Entries[0].Value)
}

func TestReadMTXErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"not matrixmarket", "garbage\n1 1 1\n"},
		{"array format", "%%MatrixMarket matrix array real general\n2 2\n1\n"},
		{"pattern field", "%%MatrixMarket matrix coordinate pattern general\n2 2 1\n1 1\n"},
		{"symmetric", "%%MatrixMarket matrix coordinate real symmetric\n2 2 1\n1 1 1\n"},
		{"missing size line", "%%MatrixMarket matrix coordinate real general\n"},
		{"malformed size line", "%%MatrixMarket matrix coordinate real general\n2 2\n"},
		{"index out of range", "%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n"},
		{"zero index", "%%MatrixMarket matrix coordinate real general\n2 2 1\n0 1 1\n"},
		{"entry count mismatch", "%%MatrixMarket matrix coordinate real general\n2 2 3\n1 1 1\n"},
		{"bad value", "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1 x\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadMTX(writeTempMTX(t, tc.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadMTX(filepath.Join(t.TempDir(), "absent.mtx"))
		assert.Error(t, err)
	})
}
