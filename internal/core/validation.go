package core

// validation.go provides the row validator used for every working row.
//
// Validation is pure and field-scoped: each invalid field yields exactly one
// FieldError, and a fresh pass always replaces the previous result for that row.
// Receipt problems are not validation errors; they live on WorkingRow.ReceiptError
// and never block submission.

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MinDescriptionLength is the minimum trimmed description length in characters.
const MinDescriptionLength = 3

// Validation messages shown next to the offending field.
const (
	MsgDescriptionTooShort = "Description must be at least 3 characters"
	MsgFieldRequired       = "Field is required"
	MsgInvalidMoney        = "Amount must be a non-negative number with at most 2 decimal places"
	MsgCategoryRequired    = "Category is required"
)

// Validate returns the field-level problems of a row, or nil if it is valid.
// Fields are checked in the order description, amount, category.
func Validate(row WorkingRow) []FieldError {
	var errs []FieldError

	if utf8.RuneCountInString(strings.TrimSpace(row.Description)) < MinDescriptionLength {
		errs = append(errs, FieldError{Field: FieldDescription, Message: MsgDescriptionTooShort})
	}

	if msg := validateAmount(row.Amount); msg != "" {
		errs = append(errs, FieldError{Field: FieldAmount, Message: msg})
	}

	if !hasCategoryID(row.CategoryID) && strings.TrimSpace(row.Category) == "" {
		errs = append(errs, FieldError{Field: FieldCategory, Message: MsgCategoryRequired})
	}

	return errs
}

func validateAmount(amount string) string {
	if CleanCell(amount) == "" {
		return MsgFieldRequired
	}
	if _, err := ParseMoney(amount); err != nil {
		return MsgInvalidMoney
	}
	return ""
}

// hasCategoryID reports whether id is a usable numeric category reference.
func hasCategoryID(id string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	return err == nil && n > 0
}

// validateAll runs Validate over every row and returns the non-empty results keyed by id.
func validateAll(rows map[string]WorkingRow) map[string][]FieldError {
	result := make(map[string][]FieldError)
	for id, row := range rows {
		if errs := Validate(row); len(errs) > 0 {
			result[id] = errs
		}
	}
	return result
}
