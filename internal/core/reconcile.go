package core

import (
	"fmt"
	"strings"
)

// Reconcile merges a batch response into a state that is in PhaseReconciling.
//
// Errored entries name 1-based positions in the submitted Order Index snapshot.
// Every submitted row not named is treated as imported and purged. A response
// that names a position outside the batch is rejected as a whole and handled
// like a transport failure, so the working set stays intact.
func Reconcile(s State, resp *BatchResponse) (State, error) {
	if s.Phase != PhaseReconciling {
		return s, fmt.Errorf("%w: reconcile in phase %s", ErrStale, s.Phase)
	}

	if err := checkResponse(resp, len(s.submitted)); err != nil {
		return failSubmit(s, err), nil
	}

	messages := make(map[string][]string, len(resp.Errored))
	records := make([]ImportErrorRecord, 0, len(resp.Errored))
	for _, e := range resp.Errored {
		id := s.submitted[e.Row-1]
		messages[id] = append(messages[id], e.Message)
		records = append(records, ImportErrorRecord{Row: e.Row, Message: e.Message, RowID: id})
	}

	next := s.clone()
	for _, id := range s.submitted {
		msgs, failed := messages[id]
		if !failed {
			next.ix.deleteRow(id)
			continue
		}
		row := next.ix.rows[id]
		row.ImportError = strings.Join(msgs, "; ")
		next.ix.rows[id] = row
	}

	next.Saving = false
	next.submitted = nil
	if len(records) == 0 {
		next.ImportErrors = nil
		next.Phase = PhaseDone
	} else {
		next.ImportErrors = records
		next.Phase = PhasePartialFailure
	}
	return next, nil
}

// checkResponse verifies that resp can be mapped onto a batch of n rows.
func checkResponse(resp *BatchResponse, n int) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	for _, e := range resp.Errored {
		if e.Row < 1 || e.Row > n {
			return fmt.Errorf("%w: errored row %d outside batch of %d", ErrMalformedResponse, e.Row, n)
		}
	}
	return nil
}
