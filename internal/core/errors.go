package core

import "errors"

// Command and session errors. Messages double as MapError patterns.
var (
	ErrSessionNotFound   = errors.New("import session not found")
	ErrTooManySessions   = errors.New("too many import sessions")
	ErrRowNotFound       = errors.New("row not found")
	ErrUnknownField      = errors.New("unknown row field")
	ErrNotEditable       = errors.New("rows are not editable while a submission is in progress or no file is loaded")
	ErrSubmitBlocked     = errors.New("submit blocked: rows have validation errors")
	ErrSubmitInFlight    = errors.New("submission already in progress")
	ErrEmptyBatch        = errors.New("nothing to submit")
	ErrStale             = errors.New("stale async result")
	ErrMalformedResponse = errors.New("malformed batch response")
	ErrTooManyRows       = errors.New("too many rows")
)
