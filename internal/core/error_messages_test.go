package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "submit blocked maps correctly",
			err:         fmt.Errorf("%w: 2 invalid rows", ErrSubmitBlocked),
			wantCode:    "IMP001",
			wantMessage: "Some rows still have errors",
		},
		{
			name:        "header row beats row not found",
			err:         errors.New("header row not found in first 20 rows"),
			wantCode:    "FILE003",
			wantMessage: "Could not find the column headers",
		},
		{
			name:        "row not found maps correctly",
			err:         fmt.Errorf("%w: abc", ErrRowNotFound),
			wantCode:    "IMP006",
			wantMessage: "That row is no longer part of the import",
		},
		{
			name:        "malformed response maps correctly",
			err:         fmt.Errorf("%w: errored row 9 outside batch of 3", ErrMalformedResponse),
			wantCode:    "NET002",
			wantMessage: "The server sent a response that could not be understood",
		},
		{
			name:        "unauthorized beats transport",
			err:         errors.New("batch transport failed: unauthorized (status 401)"),
			wantCode:    "NET001",
			wantMessage: "The server rejected the import credentials",
		},
		{
			name:        "transport failure maps correctly",
			err:         errors.New("batch transport failed: dial tcp 127.0.0.1:1: connection refused"),
			wantCode:    "NET003",
			wantMessage: "Could not reach the server",
		},
		{
			name:        "deadline maps correctly",
			err:         errors.New("context deadline exceeded"),
			wantCode:    "NET004",
			wantMessage: "The request timed out",
		},
		{
			name:        "too many rows maps correctly",
			err:         fmt.Errorf("%w: 20001 rows exceeds limit of 10000", ErrTooManyRows),
			wantCode:    "FILE006",
			wantMessage: "The file has more rows than a single import allows",
		},
		{
			name:        "parse limiter maps correctly",
			err:         ErrTooManyLoads,
			wantCode:    "RATE002",
			wantMessage: "The system is busy reading other files",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("UNSUPPORTED FILE TYPE"),
			wantCode:    "FILE002",
			wantMessage: "This file type is not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrEmptyBatch)

	expected := "There are no rows to import (Code: IMP004). Load a file with at least one transaction"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrSessionNotFound,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("%w: 3 invalid rows", ErrSubmitBlocked)
		userErr := NewUserError(techErr)

		if userErr.Error() != FormatUserError(techErr) {
			t.Errorf("Error() = %q, want formatted user message", userErr.Error())
		}
		if userErr.User.Code != "IMP001" {
			t.Errorf("User.Code = %q, want IMP001", userErr.User.Code)
		}

		if !errors.Is(userErr, ErrSubmitBlocked) {
			t.Error("Unwrap() should expose the sentinel")
		}
	})
}
