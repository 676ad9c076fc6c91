package parser

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shakinm/xlsReader/xls"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// XLSParser reads the first sheet of a legacy BIFF (.xls) workbook.
// The reader library only opens files, so the upload is spooled to a temp file.
type XLSParser struct {
	Columns Columns
}

func (p *XLSParser) Parse(ctx context.Context, r io.Reader) ([]core.RawRow, error) {
	tmp, err := os.CreateTemp("", "txnimport-*.xls")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("spool xls: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}

	sheet, err := book.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	if sheet == nil {
		return nil, nil
	}

	var records [][]string
	for _, row := range sheet.GetRows() {
		var rec []string
		for _, col := range row.GetCols() {
			rec = append(rec, col.GetString())
		}
		records = append(records, rec)
	}

	return rowsFromTable(ctx, records, p.Columns)
}
