package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
const MaxHeaderSearchRows = 20

// contextCheckInterval is how often (in rows) extraction checks for cancellation.
const contextCheckInterval = 1000

// Columns lists the accepted header names for each row field.
// Matching ignores case, spaces, underscores and dashes.
type Columns struct {
	Date        []string `yaml:"date"`
	Amount      []string `yaml:"amount"`
	Description []string `yaml:"description"`
	Category    []string `yaml:"category"`
	CategoryID  []string `yaml:"category_id"`
}

// DefaultColumns returns the built-in header aliases.
func DefaultColumns() Columns {
	return Columns{
		Date:        []string{"date", "transaction date", "posted date", "posting date", "txn date"},
		Amount:      []string{"amount", "value", "total", "debit"},
		Description: []string{"description", "memo", "details", "narration", "payee"},
		Category:    []string{"category", "category name"},
		CategoryID:  []string{"category id"},
	}
}

// Merge returns c with empty alias lists filled from d.
func (c Columns) Merge(d Columns) Columns {
	pick := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		return b
	}
	return Columns{
		Date:        pick(c.Date, d.Date),
		Amount:      pick(c.Amount, d.Amount),
		Description: pick(c.Description, d.Description),
		Category:    pick(c.Category, d.Category),
		CategoryID:  pick(c.CategoryID, d.CategoryID),
	}
}

// layout is the column position of each field; -1 when absent.
type layout struct {
	date, amount, description, category, categoryID int
}

func normalizeHeader(s string) string {
	s = strings.ToLower(core.CleanCell(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}

func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		want := normalizeHeader(alias)
		for i, cell := range header {
			if normalizeHeader(cell) == want {
				return i
			}
		}
	}
	return -1
}

// matchHeader reports the layout of header if it names date, amount and description.
func matchHeader(header []string, cols Columns) (layout, bool) {
	l := layout{
		date:        findColumn(header, cols.Date),
		amount:      findColumn(header, cols.Amount),
		description: findColumn(header, cols.Description),
		category:    findColumn(header, cols.Category),
		categoryID:  findColumn(header, cols.CategoryID),
	}
	return l, l.date >= 0 && l.amount >= 0 && l.description >= 0
}

// rowsFromTable finds the header within the first MaxHeaderSearchRows records
// and converts every non-empty record after it.
func rowsFromTable(ctx context.Context, records [][]string, cols Columns) ([]core.RawRow, error) {
	if len(records) == 0 {
		return nil, nil
	}

	headerIdx := -1
	var l layout
	limit := min(len(records), MaxHeaderSearchRows)
	for i := 0; i < limit; i++ {
		if m, ok := matchHeader(records[i], cols); ok {
			headerIdx, l = i, m
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w in first %d rows (need date, amount and description columns)", ErrHeaderNotFound, limit)
	}

	rows := make([]core.RawRow, 0, len(records)-headerIdx-1)
	for i, rec := range records[headerIdx+1:] {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(rec) {
			continue
		}
		rows = append(rows, core.RawRow{
			Date:        cell(rec, l.date),
			Amount:      cell(rec, l.amount),
			Description: cell(rec, l.description),
			Category:    cell(rec, l.category),
			CategoryID:  cell(rec, l.categoryID),
		})
	}
	return rows, nil
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
