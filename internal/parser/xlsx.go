package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// XLSXParser reads the first sheet of an Office Open XML workbook.
type XLSXParser struct {
	Columns Columns
}

func (p *XLSXParser) Parse(ctx context.Context, r io.Reader) ([]core.RawRow, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer xl.Close()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		return nil, nil
	}

	records, err := xl.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: read sheet %q: %w", sheet, err)
	}

	return rowsFromTable(ctx, records, p.Columns)
}
