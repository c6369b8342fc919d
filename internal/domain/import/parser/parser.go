// Package parser turns raw bank export bytes into a RawTable.
//
// It uses a two-tier strategy: a strict encoding/csv pass for well-formed
// files, falling back to the tolerant tokenizer when the strict pass fails.
// Clean files get the fast correct path, messy real-world exports still
// parse.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/moneta-app/moneta/internal/domain/import/sniffer"
	"github.com/moneta-app/moneta/internal/domain/import/tokenizer"
)

// ErrDecode indicates the input bytes are not valid UTF-8 text.
var ErrDecode = errors.New("parser: input is not valid UTF-8")

// ErrParseEmpty mirrors the tokenizer sentinel so callers only need to
// depend on this package.
var ErrParseEmpty = tokenizer.ErrParseEmpty

// RawTable is a parsed file: an ordered header row and data rows whose
// cells align positionally to the headers. Header name collisions are
// preserved as-is; the mapper binds the first occurrence.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Preview returns up to n data rows for display.
func (t *RawTable) Preview(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Parse decodes data into a RawTable. A zero delimiter means detect one
// from the sample. Returns ErrDecode for non-UTF-8 input and ErrParseEmpty
// when no header row can be found.
func Parse(data []byte, delimiter rune) (*RawTable, error) {
	data = sniffer.StripBOM(data)
	if !utf8.Valid(data) {
		return nil, ErrDecode
	}

	text := string(data)
	if delimiter == 0 {
		delimiter = sniffer.DetectDelimiter(text)
	}

	if table, err := parseStrict(text, delimiter); err == nil {
		return table, nil
	}

	// Strict parse failed: re-detect the delimiter from the raw text and
	// let the tolerant tokenizer repair whatever is wrong.
	headers, rows, err := tokenizer.Tokenize(text, sniffer.DetectDelimiter(text))
	if err != nil {
		return nil, err
	}
	return &RawTable{Headers: headers, Rows: rows}, nil
}

// parseStrict reads a standards-compliant CSV with a fixed field count.
func parseStrict(text string, delimiter rune) (*RawTable, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if allBlank(record) {
			continue
		}
		rows = append(rows, record)
	}

	return &RawTable{Headers: headers, Rows: rows}, nil
}

func allBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseReader is a convenience wrapper for callers holding an io.Reader.
func ParseReader(r io.Reader, delimiter rune) (*RawTable, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return Parse(buf.Bytes(), delimiter)
}
