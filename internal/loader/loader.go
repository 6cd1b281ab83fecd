// Package loader reads semicolon-delimited open-data tables into
// untyped row tables, tolerating the encoding variation of French
// government exports.
package loader

import (
	"encoding/csv"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrSourceUnavailable reports a missing or unreadable input file.
	ErrSourceUnavailable = eris.New("loader: source unavailable")

	// ErrEncoding reports that no candidate encoding decoded the file
	// cleanly.
	ErrEncoding = eris.New("loader: all encodings exhausted")
)

// candidate is one entry of the ordered encoding fallback list.
type candidate struct {
	name string
	enc  encoding.Encoding
}

// encodings is tried in order; the first one that decodes the whole
// file without replacement runes wins. LOVAC exports are historically
// Windows-1252/Latin-1; UTF-8 closes the list for re-exported files.
var encodings = []candidate{
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
	{"utf-8", unicode.UTF8},
}

// Table is an untyped row table. All cells are raw strings; column
// names are trimmed and internal whitespace runs are collapsed to
// underscores.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Cell returns the raw cell at row i for the named column, or "" when
// the column is absent or the row is short.
func (t *Table) Cell(i int, column string) string {
	j, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// ReadCSV reads a delimited text file into a Table. The file is read
// once; each candidate encoding is tried in order until one fully
// decodes the bytes.
func ReadCSV(path string, delimiter rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrSourceUnavailable, "loader: %s", path)
		}
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}

	text, name, err := decode(data, encodings)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: decode %s", path)
	}

	zap.L().Debug("source decoded",
		zap.String("component", "loader"),
		zap.String("path", path),
		zap.String("encoding", name),
	)

	table, err := parse(text, delimiter)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse %s", path)
	}
	return table, nil
}

// decode tries each candidate in order and returns the first clean
// result. A decode is clean when the output is valid UTF-8 and contains
// no replacement runes; charmap decoders substitute U+FFFD for bytes
// the encoding does not define, which is how a wrong guess surfaces.
func decode(data []byte, cands []candidate) (string, string, error) {
	for _, c := range cands {
		out, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if !utf8.Valid(out) || strings.ContainsRune(string(out), utf8.RuneError) {
			continue
		}
		return string(out), c.name, nil
	}
	return "", "", ErrEncoding
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeHeader trims a column name and collapses internal whitespace
// to underscores.
func normalizeHeader(name string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
}

func parse(text string, delimiter rune) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	if delimiter != 0 {
		r.Comma = delimiter
	}
	r.LazyQuotes = true
	r.FieldsPerRecord = -1 // allow variable fields

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read rows")
	}
	if len(records) == 0 {
		return &Table{index: map[string]int{}}, nil
	}

	columns := make([]string, len(records[0]))
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[i] = normalizeHeader(name)
		index[columns[i]] = i
	}

	return &Table{
		Columns: columns,
		Rows:    records[1:],
		index:   index,
	}, nil
}
