package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// CSVParser reads comma-separated files. Ragged rows and stray quotes are tolerated.
type CSVParser struct {
	Columns Columns
	Comma   rune // 0 means ','
}

func (p *CSVParser) Parse(ctx context.Context, r io.Reader) ([]core.RawRow, error) {
	cr := csv.NewReader(cleanText(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if p.Comma != 0 {
		cr.Comma = p.Comma
	}

	var records [][]string
	for {
		if len(records)%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		records = append(records, rec)
	}

	return rowsFromTable(ctx, records, p.Columns)
}
