package core

// machine.go is the import state machine: a Phase enum plus a reducer.
//
// Reduce is the only place State changes. It never mutates its input; a
// rejected action returns the input state unchanged together with an error.
// Asynchronous results (load and submit) carry the generation that was current
// when the call started and are rejected with ErrStale once it moved on.

import (
	"fmt"
	"strings"
)

// Phase is the lifecycle position of an import session.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseLoading        Phase = "loading"
	PhaseReviewing      Phase = "reviewing"
	PhaseSubmitting     Phase = "submitting"
	PhaseReconciling    Phase = "reconciling"
	PhaseDone           Phase = "done"
	PhasePartialFailure Phase = "partial_failure"
)

// editable reports whether rows may be edited, deleted or submitted in p.
func (p Phase) editable() bool {
	return p == PhaseReviewing || p == PhasePartialFailure
}

// State is the complete state of one import session.
type State struct {
	Phase            Phase
	Loading          bool
	Saving           bool
	ShowImportDialog bool
	ImportErrors     []ImportErrorRecord
	LoadError        error
	SubmitError      error

	ix        indices
	loadGen   uint64
	submitGen uint64
	submitted []string // Order Index snapshot of the in-flight submission
}

// NewState returns an idle state with empty indices.
func NewState() State {
	return State{Phase: PhaseIdle, ix: newIndices()}
}

func (s State) clone() State {
	c := s
	c.ix = s.ix.clone()
	if s.ImportErrors != nil {
		c.ImportErrors = append([]ImportErrorRecord(nil), s.ImportErrors...)
	}
	if s.submitted != nil {
		c.submitted = append([]string(nil), s.submitted...)
	}
	return c
}

// Rows returns the visible rows in display order.
func (s State) Rows() []WorkingRow {
	return s.ix.ordered()
}

// Order returns a copy of the Order Index.
func (s State) Order() []string {
	return append([]string(nil), s.ix.order...)
}

// Errors returns the validation problems of one row.
func (s State) Errors(id string) []FieldError {
	return s.ix.errors[id]
}

// InvalidCount is the number of rows with at least one validation problem.
func (s State) InvalidCount() int {
	return s.ix.invalidCount()
}

// CanSubmit reports whether a Submit action would be accepted.
func (s State) CanSubmit() bool {
	return s.submitCheck() == nil
}

// LoadGen and SubmitGen expose the current generations so async callers can tag results.
func (s State) LoadGen() uint64   { return s.loadGen }
func (s State) SubmitGen() uint64 { return s.submitGen }

func (s State) submitCheck() error {
	switch {
	case s.Saving:
		return ErrSubmitInFlight
	case !s.Phase.editable():
		return fmt.Errorf("%w: phase %s", ErrNotEditable, s.Phase)
	case s.ix.invalidCount() > 0:
		return fmt.Errorf("%w: %d invalid rows", ErrSubmitBlocked, s.ix.invalidCount())
	case len(s.ix.order) == 0:
		return ErrEmptyBatch
	}
	return nil
}

// submission returns the wire rows of the current Order Index.
func (s State) submission() []SubmitRow {
	out := make([]SubmitRow, 0, len(s.ix.order))
	for _, id := range s.ix.order {
		out = append(out, toSubmitRow(s.ix.rows[id]))
	}
	return out
}

// toSubmitRow converts a valid row to wire form. Amounts are sent in plain
// two-decimal form ("1000.00"), whatever symbols or separators the file used.
func toSubmitRow(row WorkingRow) SubmitRow {
	amount := CleanCell(row.Amount)
	if d, err := ParseMoney(row.Amount); err == nil {
		amount = d.StringFixed(2)
	}
	sr := SubmitRow{
		Date:        strings.TrimSpace(row.Date),
		Amount:      amount,
		Description: strings.TrimSpace(row.Description),
		Category:    strings.TrimSpace(row.Category),
		CategoryID:  strings.TrimSpace(row.CategoryID),
	}
	if row.Receipt != nil {
		sr.Receipt = &ReceiptPayload{
			FileName:    row.Receipt.FileName,
			ContentType: row.Receipt.ContentType,
			Data:        row.Receipt.Data,
		}
	}
	return sr
}

// Action is an input to Reduce.
type Action interface {
	actionName() string
}

type (
	// OpenDialog shows the import dialog.
	OpenDialog struct{}

	// LoadStarted begins a new file load and supersedes any previous one.
	LoadStarted struct{}

	// LoadSucceeded delivers parsed rows. IDs must already be assigned.
	LoadSucceeded struct {
		Gen  uint64
		Rows []WorkingRow
	}

	// LoadFailed reports that the file could not be parsed.
	LoadFailed struct {
		Gen uint64
		Err error
	}

	// EditRow sets one field of one row.
	EditRow struct {
		ID    string
		Field string
		Value string
	}

	// DeleteRow removes a row from the working set.
	DeleteRow struct {
		ID string
	}

	// AttachReceipt records the attachment validator's outcome for one row.
	// A non-empty Err replaces any previous receipt.
	AttachReceipt struct {
		ID      string
		Receipt *Receipt
		Err     string
	}

	// SubmitStarted freezes the Order Index and marks the session as saving.
	SubmitStarted struct{}

	// SubmitResponded delivers a batch response for reconciliation.
	SubmitResponded struct {
		Gen      uint64
		Response *BatchResponse
	}

	// SubmitFailed reports that no usable response was received.
	SubmitFailed struct {
		Gen uint64
		Err error
	}

	// ClearImportErrors dismisses server-reported row errors.
	ClearImportErrors struct{}

	// CloseDialog abandons the import and resets to idle.
	CloseDialog struct{}
)

func (OpenDialog) actionName() string        { return "open_dialog" }
func (LoadStarted) actionName() string       { return "load_started" }
func (LoadSucceeded) actionName() string     { return "load_succeeded" }
func (LoadFailed) actionName() string        { return "load_failed" }
func (EditRow) actionName() string           { return "edit_row" }
func (DeleteRow) actionName() string         { return "delete_row" }
func (AttachReceipt) actionName() string     { return "attach_receipt" }
func (SubmitStarted) actionName() string     { return "submit_started" }
func (SubmitResponded) actionName() string   { return "submit_responded" }
func (SubmitFailed) actionName() string      { return "submit_failed" }
func (ClearImportErrors) actionName() string { return "clear_import_errors" }
func (CloseDialog) actionName() string       { return "close_dialog" }

// Reduce applies a to s and returns the next state.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case OpenDialog:
		next := s.clone()
		next.ShowImportDialog = true
		return next, nil

	case LoadStarted:
		if s.Saving {
			return s, ErrSubmitInFlight
		}
		next := s.clone()
		next.loadGen++
		next.Phase = PhaseLoading
		next.Loading = true
		next.ShowImportDialog = true
		next.LoadError = nil
		next.SubmitError = nil
		next.ImportErrors = nil
		next.submitted = nil
		next.ix = newIndices()
		return next, nil

	case LoadSucceeded:
		if a.Gen != s.loadGen || s.Phase != PhaseLoading {
			return s, ErrStale
		}
		next := s.clone()
		next.ix.setRows(a.Rows)
		ids := make([]string, len(a.Rows))
		for i, row := range a.Rows {
			ids[i] = row.ID
		}
		next.ix.setOrder(ids)
		next.Loading = false
		next.Phase = PhaseReviewing
		return next, nil

	case LoadFailed:
		if a.Gen != s.loadGen || s.Phase != PhaseLoading {
			return s, ErrStale
		}
		next := s.clone()
		next.ix = newIndices()
		next.Loading = false
		next.Phase = PhaseIdle
		next.LoadError = a.Err
		return next, nil

	case EditRow:
		row, err := s.editableRow(a.ID)
		if err != nil {
			return s, err
		}
		if err := setField(&row, a.Field, a.Value); err != nil {
			return s, err
		}
		next := s.clone()
		next.ix.putRow(row)
		next.reopen()
		return next, nil

	case DeleteRow:
		if _, err := s.editableRow(a.ID); err != nil {
			return s, err
		}
		next := s.clone()
		next.ix.deleteRow(a.ID)
		next.ImportErrors = dropRecordsFor(next.ImportErrors, a.ID)
		next.reopen()
		return next, nil

	case AttachReceipt:
		row, err := s.editableRow(a.ID)
		if err != nil {
			return s, err
		}
		if a.Err != "" {
			row.Receipt = nil
			row.ReceiptError = a.Err
		} else {
			row.Receipt = a.Receipt
			row.ReceiptError = ""
		}
		next := s.clone()
		next.ix.rows[row.ID] = row
		return next, nil

	case SubmitStarted:
		if err := s.submitCheck(); err != nil {
			return s, err
		}
		next := s.clone()
		next.submitGen++
		next.Saving = true
		next.Phase = PhaseSubmitting
		next.SubmitError = nil
		next.ImportErrors = nil
		next.clearRowImportErrors()
		next.submitted = append([]string(nil), s.ix.order...)
		return next, nil

	case SubmitResponded:
		if a.Gen != s.submitGen || s.Phase != PhaseSubmitting {
			return s, ErrStale
		}
		next := s.clone()
		next.Phase = PhaseReconciling
		return Reconcile(next, a.Response)

	case SubmitFailed:
		if a.Gen != s.submitGen || !s.Saving {
			return s, ErrStale
		}
		return failSubmit(s, a.Err), nil

	case ClearImportErrors:
		next := s.clone()
		next.ImportErrors = nil
		next.clearRowImportErrors()
		return next, nil

	case CloseDialog:
		next := NewState()
		next.loadGen = s.loadGen + 1
		next.submitGen = s.submitGen + 1
		return next, nil
	}

	return s, fmt.Errorf("unknown action %T", a)
}

// failSubmit restores the pre-submit working set untouched and records err.
func failSubmit(s State, err error) State {
	next := s.clone()
	next.Saving = false
	next.Phase = PhaseReviewing
	next.SubmitError = err
	next.submitted = nil
	return next
}

func (s State) editableRow(id string) (WorkingRow, error) {
	if !s.Phase.editable() {
		return WorkingRow{}, fmt.Errorf("%w: phase %s", ErrNotEditable, s.Phase)
	}
	if s.ix.position(id) < 0 {
		return WorkingRow{}, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return s.ix.rows[id], nil
}

// reopen moves a partially failed import back to review after the user touches a row.
func (s *State) reopen() {
	if s.Phase == PhasePartialFailure {
		s.Phase = PhaseReviewing
	}
}

func (s *State) clearRowImportErrors() {
	for id, row := range s.ix.rows {
		if row.ImportError != "" {
			row.ImportError = ""
			s.ix.rows[id] = row
		}
	}
}

func dropRecordsFor(records []ImportErrorRecord, id string) []ImportErrorRecord {
	if len(records) == 0 {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if r.RowID != id {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func setField(row *WorkingRow, field, value string) error {
	switch field {
	case FieldDate:
		row.Date = value
	case FieldAmount:
		row.Amount = value
	case FieldDescription:
		row.Description = value
	case FieldCategory:
		row.Category = value
	case FieldCategoryID:
		row.CategoryID = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}
