// Package tokenizer implements a tolerant CSV tokenizer for messy bank
// exports. Unlike encoding/csv it never fails on ragged rows: short rows
// are padded and overlong rows are merged back into the last column.
package tokenizer

import (
	"errors"
	"strings"
)

// ErrParseEmpty indicates the input produced no header row at all.
// Callers should treat the file as unreadable.
var ErrParseEmpty = errors.New("tokenizer: no header row found")

// Tokenize converts raw text into a header row and data rows using a
// character-by-character state machine with states {normal, in-quotes}.
//
// Quoting rules:
//   - a doubled quote inside a quoted field is an escaped literal quote
//   - the delimiter inside quotes is literal
//   - CR, LF and CRLF outside quotes all terminate a row (CRLF counts once)
//
// Rows whose cells are all blank are dropped, which absorbs trailing blank
// lines. Every returned data row has exactly len(headers) cells.
func Tokenize(text string, delimiter rune) (headers []string, rows [][]string, err error) {
	raw := tokenizeRows(text, delimiter)
	if len(raw) == 0 {
		return nil, nil, ErrParseEmpty
	}

	headers = raw[0]
	rows = make([][]string, 0, len(raw)-1)
	for _, row := range raw[1:] {
		rows = append(rows, Repair(row, len(headers), delimiter))
	}
	return headers, rows, nil
}

// Repair forces a row to exactly width cells. Short rows are padded with
// empty strings on the right. Long rows have the overflow merged into the
// last cell, rejoined with the delimiter — the usual cause is an unescaped
// delimiter inside what should have been quoted text.
func Repair(row []string, width int, delimiter rune) []string {
	switch {
	case len(row) == width:
		return row
	case len(row) < width:
		repaired := make([]string, width)
		copy(repaired, row)
		return repaired
	default:
		repaired := make([]string, width)
		copy(repaired, row[:width-1])
		repaired[width-1] = strings.Join(row[width-1:], string(delimiter))
		return repaired
	}
}

func tokenizeRows(text string, delimiter rune) [][]string {
	var (
		rows     [][]string
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		if !allBlank(fields) {
			rows = append(rows, fields)
		}
		fields = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
				continue
			}
			field.WriteRune(c)
			continue
		}

		switch c {
		case '"':
			inQuotes = true
		case delimiter:
			endField()
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		case '\n':
			endRow()
		default:
			field.WriteRune(c)
		}
	}

	// Flush a final row with no trailing newline.
	if field.Len() > 0 || len(fields) > 0 {
		endRow()
	}

	return rows
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
