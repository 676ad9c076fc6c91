package core

import (
	"errors"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseMoney Tests
// ----------------------------------------------------------------------------

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   error
		wantValue string
	}{
		{name: "integer", input: "123", wantValue: "123"},
		{name: "zero", input: "0", wantValue: "0"},
		{name: "two decimals", input: "123.45", wantValue: "123.45"},
		{name: "one decimal", input: "9.5", wantValue: "9.5"},
		{name: "leading decimal point", input: ".99", wantValue: "0.99"},
		{name: "dollar and thousands", input: "$1,234.56", wantValue: "1234.56"},
		{name: "euro sign", input: "€1234.56", wantValue: "1234.56"},
		{name: "pound sign", input: "£1234.56", wantValue: "1234.56"},
		{name: "surrounding whitespace", input: "  42.10  ", wantValue: "42.1"},
		{name: "excel formula prefix", input: `="12.30"`, wantValue: "12.3"},
		{name: "trailing zero beyond two places", input: "1.500", wantValue: "1.5"},

		{name: "empty", input: "", wantErr: ErrInvalidMoney},
		{name: "negative", input: "-5.00", wantErr: ErrInvalidMoney},
		{name: "accounting negative", input: "(5.00)", wantErr: ErrInvalidMoney},
		{name: "letters", input: "abc", wantErr: ErrInvalidMoney},
		{name: "trailing decimal point", input: "99.", wantErr: ErrInvalidMoney},
		{name: "two decimal points", input: "1.2.3", wantErr: ErrInvalidMoney},
		{name: "three decimals", input: "1.234", wantErr: ErrMoneyPrecision},
		{name: "tiny fraction", input: "0.001", wantErr: ErrMoneyPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseMoney(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.wantValue {
				t.Errorf("ParseMoney(%q) = %s, want %s", tt.input, got.String(), tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "ISO", input: "2024-03-15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "ISO slashes", input: "2024/03/15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "US", input: "3/15/2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "US padded", input: "03/15/2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "dotted", input: "03.15.2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "month name", input: "Mar 15, 2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "compact", input: "20240315", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "RFC3339", input: "2024-03-15T10:30:00Z", want: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{name: "excel formula", input: `="2024-03-15"`, want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},

		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not a date", wantErr: true},
		{name: "impossible day", input: "2024-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidDate", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	got, err := ParseDate("3/15/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Year() != 2024 {
		t.Errorf("year = %d, want 2024", got.Year())
	}

	// Far enough ahead of the pivot to land in the previous century.
	got, err = ParseDate("3/15/99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
