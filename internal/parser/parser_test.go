package parser

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/txnimport/internal/core"
)

func parseCSV(t *testing.T, text string) ([]core.RawRow, error) {
	t.Helper()
	p := &CSVParser{Columns: DefaultColumns()}
	return p.Parse(context.Background(), strings.NewReader(text))
}

func TestCSVParser_Basic(t *testing.T) {
	rows, err := parseCSV(t, "Date,Amount,Description,Category\n"+
		"2024-03-15,12.50,Office supplies,Office\n"+
		"2024-03-16,\"1,200.00\",Flight to NYC,Travel\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, core.RawRow{Date: "2024-03-15", Amount: "12.50", Description: "Office supplies", Category: "Office"}, rows[0])
	assert.Equal(t, "1,200.00", rows[1].Amount)
}

func TestCSVParser_HeaderAfterPreamble(t *testing.T) {
	rows, err := parseCSV(t, "Bank export\nAccount: 1234\n\n"+
		"Posted Date,Memo,Amount,Category ID\n"+
		"03/15/2024,Coffee beans,4.50,7\n"+
		",,,\n"+
		"03/16/2024,Printer ink,30,8\n")
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank rows are skipped")

	assert.Equal(t, "Coffee beans", rows[0].Description)
	assert.Equal(t, "7", rows[0].CategoryID)
	assert.Empty(t, rows[0].Category)
}

func TestCSVParser_ShortRowsAndBOM(t *testing.T) {
	rows, err := parseCSV(t, "\ufeffdate,amount,description,category\n2024-01-01,5\n")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0].Amount)
	assert.Empty(t, rows[0].Description)
}

func TestCSVParser_HeaderOnlyYieldsNoRows(t *testing.T) {
	rows, err := parseCSV(t, "date,amount,description\n")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVParser_NoRecordsYieldsNoRows(t *testing.T) {
	for _, content := range []string{"", "\n\n", "\r\n\r\n\n"} {
		rows, err := parseCSV(t, content)
		require.NoError(t, err, "%q", content)
		assert.Empty(t, rows, "%q", content)
	}
}

func TestCSVParser_Errors(t *testing.T) {
	_, err := parseCSV(t, "foo,bar\n1,2\n")
	assert.ErrorIs(t, err, ErrHeaderNotFound)

	var b strings.Builder
	for i := 0; i < MaxHeaderSearchRows; i++ {
		b.WriteString("junk\n")
	}
	b.WriteString("date,amount,description\n2024-01-01,1,abc\n")
	_, err = parseCSV(t, b.String())
	assert.ErrorIs(t, err, ErrHeaderNotFound, "header beyond the search window")
}

func TestCSVParser_CustomAliasesAndComma(t *testing.T) {
	cols := Columns{Description: []string{"Beschreibung"}}.Merge(DefaultColumns())
	p := &CSVParser{Columns: cols, Comma: ';'}

	rows, err := p.Parse(context.Background(), strings.NewReader("Date;Amount;Beschreibung\n2024-01-01;5;Kaffee\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kaffee", rows[0].Description)
}

func TestCSVParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &CSVParser{Columns: DefaultColumns()}
	_, err := p.Parse(ctx, strings.NewReader("date,amount,description\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXParser(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	data := [][]any{
		{"Quarterly expenses"},
		{"Date", "Description", "Amount", "Category"},
		{"2024-03-15", "Team lunch", "84.20", "Meals"},
		{"2024-03-16", "Taxi", "23", "Travel"},
	}
	for i, row := range data {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	p := &XLSXParser{Columns: DefaultColumns()}
	rows, err := p.Parse(context.Background(), &buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.RawRow{Date: "2024-03-15", Amount: "84.20", Description: "Team lunch", Category: "Meals"}, rows[0])
}

func TestXLSXParser_NotAWorkbook(t *testing.T) {
	p := &XLSXParser{Columns: DefaultColumns()}
	_, err := p.Parse(context.Background(), strings.NewReader("definitely not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid spreadsheet")
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(DefaultColumns())
	assert.Equal(t, []string{".csv", ".xls", ".xlsx"}, r.Extensions())

	p, err := r.ForFile("Statement.CSV")
	require.NoError(t, err)
	assert.IsType(t, &CSVParser{}, p)

	_, err = r.ForFile("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	assert.Panics(t, func() { r.Register("csv", &CSVParser{}) })
}

func TestRegistry_Loader(t *testing.T) {
	r := DefaultRegistry(DefaultColumns())

	for _, name := range []string{"empty.csv", "empty.xlsx", "empty.xls"} {
		load, err := r.Loader(name, nil)
		require.NoError(t, err, name)
		rows, err := load(context.Background())
		require.NoError(t, err, name)
		assert.Empty(t, rows, name)
	}

	_, err := r.Loader("image.png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	load, err := r.Loader("ok.csv", []byte("date,amount,description\n2024-01-01,1,abc\n"))
	require.NoError(t, err)
	rows, err := load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = ReadLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	data, err = ReadLimited(strings.NewReader("42"), 0)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))
}
