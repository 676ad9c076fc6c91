package core

// error_messages.go maps technical errors to user-facing messages with codes
// support staff can look up.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large            Patterns: "file too large"
//	FILE002 - Unsupported file type     Patterns: "unsupported file type"
//	FILE003 - Header row not found      Patterns: "header row not found"
//	FILE004 - No file                   Patterns: "no file provided"
//	FILE006 - Too many rows             Patterns: "too many rows"
//	FILE007 - Unreadable file           Patterns: "invalid csv", "invalid spreadsheet"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Rows still invalid         Patterns: "submit blocked"
//	IMP002 - Submission in progress     Patterns: "submission already in progress"
//	IMP003 - Session expired            Patterns: "import session not found"
//	IMP004 - Nothing to submit          Patterns: "nothing to submit"
//	IMP005 - Rows locked                Patterns: "not editable"
//	IMP006 - Row gone                   Patterns: "row not found"
//	IMP007 - Unknown field              Patterns: "unknown row field"
//	IMP008 - Too many sessions          Patterns: "too many import sessions"
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Not authorized             Patterns: "unauthorized"
//	NET002 - Bad server response        Patterns: "malformed batch response"
//	NET003 - Server unreachable         Patterns: "batch transport failed", "connection refused"
//	NET004 - Timed out                  Patterns: "context deadline exceeded", "timeout"
//	NET005 - Cancelled                  Patterns: "context canceled"
//
// # Attachment Errors (ATT001-ATT099)
//
//	ATT001 - Receipt too large          Patterns: "receipt too large"
//	ATT002 - Receipt type not allowed   Patterns: "receipt type not allowed"
//	ATT003 - Empty receipt              Patterns: "receipt is empty"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited              Patterns: "rate limit"
//	RATE002 - Parser busy               Patterns: "too many concurrent file loads"
//
// ERR000 is the fallback when nothing matches; check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns must precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .xlsx or .xls file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "header row not found",
		msg: UserMessage{
			Message: "Could not find the column headers",
			Action:  "Make sure the file has Date, Amount and Description columns",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "too many rows",
		msg: UserMessage{
			Message: "The file has more rows than a single import allows",
			Action:  "Split the file into smaller imports",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Ensure the file is comma-separated with consistent columns",
			Code:    "FILE007",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Re-save the file in Excel and try again",
			Code:    "FILE007",
		},
	},

	// Import errors
	{
		pattern: "submit blocked",
		msg: UserMessage{
			Message: "Some rows still have errors",
			Action:  "Fix or delete the highlighted rows before importing",
			Code:    "IMP001",
		},
	},
	{
		pattern: "submission already in progress",
		msg: UserMessage{
			Message: "An import is already being saved",
			Action:  "Wait for it to finish",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "nothing to submit",
		msg: UserMessage{
			Message: "There are no rows to import",
			Action:  "Load a file with at least one transaction",
			Code:    "IMP004",
		},
	},
	{
		pattern: "not editable",
		msg: UserMessage{
			Message: "Rows cannot be changed right now",
			Action:  "Wait for the current import to finish",
			Code:    "IMP005",
		},
	},
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "That row is no longer part of the import",
			Action:  "Refresh the table",
			Code:    "IMP006",
		},
	},
	{
		pattern: "unknown row field",
		msg: UserMessage{
			Message: "That column cannot be edited",
			Action:  "Edit date, amount, description or category",
			Code:    "IMP007",
		},
	},
	{
		pattern: "too many import sessions",
		msg: UserMessage{
			Message: "Too many imports are open",
			Action:  "Close an open import and try again",
			Code:    "IMP008",
		},
	},

	// Network errors
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "The server rejected the import credentials",
			Action:  "Sign in again or check the API key",
			Code:    "NET001",
		},
	},
	{
		pattern: "malformed batch response",
		msg: UserMessage{
			Message: "The server sent a response that could not be understood",
			Action:  "Nothing was removed. Please try again",
			Code:    "NET002",
		},
	},
	{
		pattern: "batch transport failed",
		msg: UserMessage{
			Message: "Could not reach the server",
			Action:  "Nothing was removed. Check your connection and try again",
			Code:    "NET003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Could not reach the server",
			Action:  "Nothing was removed. Check your connection and try again",
			Code:    "NET003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "NET004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "NET004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "NET005",
		},
	},

	// Attachment errors
	{
		pattern: "receipt too large",
		msg: UserMessage{
			Message: "Receipt file is too large",
			Action:  "Attach a smaller image or PDF",
			Code:    "ATT001",
		},
	},
	{
		pattern: "receipt type not allowed",
		msg: UserMessage{
			Message: "Receipt must be an image or PDF",
			Action:  "Attach a .png, .jpg, .gif, .webp or .pdf file",
			Code:    "ATT002",
		},
	},
	{
		pattern: "receipt is empty",
		msg: UserMessage{
			Message: "Receipt file is empty",
			Action:  "Attach a different file",
			Code:    "ATT003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "too many concurrent file loads",
		msg: UserMessage{
			Message: "The system is busy reading other files",
			Action:  "Please wait a moment and try again",
			Code:    "RATE002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a display string in the form "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs and errors.Is) with its user message (for display).
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return FormatUserError(e.Technical)
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
