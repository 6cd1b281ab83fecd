package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadCSVLatin1(t *testing.T) {
	t.Parallel()

	// "Ardèche" with è encoded as Latin-1 0xE8.
	data := []byte("DEP;LIB_DEP;pp_total_24\n07;Ard\xe8che;1 234\n")
	path := writeFile(t, data)

	table, err := ReadCSV(path, ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"DEP", "LIB_DEP", "pp_total_24"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "07", table.Cell(0, "DEP"))
	assert.Equal(t, "Ardèche", table.Cell(0, "LIB_DEP"))
	assert.Equal(t, "1 234", table.Cell(0, "pp_total_24"))
}

func TestReadCSVHeaderNormalization(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("  DEP ;LIB  DEP;pp_total_24 \nv1;v2;v3\n"))

	table, err := ReadCSV(path, ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"DEP", "LIB_DEP", "pp_total_24"}, table.Columns)

	i, ok := table.ColumnIndex("LIB_DEP")
	require.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestReadCSVMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"), ';')
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestReadCSVShortRow(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("DEP;LIB_DEP;pp_total_24\n07;Ardeche\n"))

	table, err := ReadCSV(path, ';')
	require.NoError(t, err)
	assert.Equal(t, "", table.Cell(0, "pp_total_24"))
}

func TestDecodeFallbackOrder(t *testing.T) {
	t.Parallel()

	// 0xE9 is é in both Windows-1252 and Latin-1; the first candidate
	// wins.
	_, name, err := decode([]byte("caf\xe9"), encodings)
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", name)
}

func TestDecodeExhausted(t *testing.T) {
	t.Parallel()

	// 0x81 is undefined in Windows-1252 and invalid as UTF-8, so a
	// UTF-8-only candidate list cannot decode it cleanly.
	only := []candidate{{"utf-8", unicode.UTF8}}
	_, _, err := decode([]byte{'a', 0x81, 'b'}, only)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestDecodeUTF8PassesThrough(t *testing.T) {
	t.Parallel()

	only := []candidate{{"utf-8", unicode.UTF8}}
	out, name, err := decode([]byte("Rhône"), only)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", name)
	assert.Equal(t, "Rhône", out)
}

func TestCellOutOfRange(t *testing.T) {
	t.Parallel()

	path := writeFile(t, []byte("A;B\n1;2\n"))
	table, err := ReadCSV(path, ';')
	require.NoError(t, err)

	assert.Equal(t, "", table.Cell(5, "A"))
	assert.Equal(t, "", table.Cell(0, "missing"))
}
