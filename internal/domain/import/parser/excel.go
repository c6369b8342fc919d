package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/moneta-app/moneta/internal/domain/import/tokenizer"
)

// ParseExcel reads the first sheet of an XLSX workbook into a RawTable.
// The first non-blank row is the header; excelize trims trailing empty
// cells so data rows are repaired to the header width.
func ParseExcel(r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrParseEmpty
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var headers []string
	table := &RawTable{}
	for _, row := range rows {
		if allBlank(row) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i, h := range row {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}
		table.Rows = append(table.Rows, tokenizer.Repair(row, len(headers), ','))
	}

	if headers == nil {
		return nil, ErrParseEmpty
	}
	table.Headers = headers
	return table, nil
}
