package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// submitted returns a state with rows a, b, c in flight.
func submitted(t *testing.T) State {
	t.Helper()
	s := reviewing(t, validRow("a"), validRow("b"), validRow("c"))
	return mustReduce(t, s, SubmitStarted{})
}

// Property 4: only the errored position survives.
func TestReconcile_PartialFailure(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Imported: []ImportedRow{{ID: "1"}, {ID: "3"}},
		Errored:  []ImportErrorRecord{{Row: 2, Message: "Invalid date"}},
	}})

	assert.Equal(t, PhasePartialFailure, s.Phase)
	assert.False(t, s.Saving)
	assert.Equal(t, []string{"b"}, s.Order())
	require.Len(t, s.ImportErrors, 1)
	assert.Equal(t, ImportErrorRecord{Row: 2, Message: "Invalid date", RowID: "b"}, s.ImportErrors[0])

	rows := s.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Invalid date", rows[0].ImportError)
}

// Property 5: an empty errored list purges everything.
func TestReconcile_AllImported(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{}})

	assert.Equal(t, PhaseDone, s.Phase)
	assert.Empty(t, s.Rows())
	assert.Empty(t, s.ImportErrors)
	assert.False(t, s.Saving)
}

func TestReconcile_AllErroredKeepsEverything(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Errored: []ImportErrorRecord{
			{Row: 1, Message: "Unknown category"},
			{Row: 2, Message: "Unknown category"},
			{Row: 3, Message: "Invalid amount"},
		},
	}})

	assert.Equal(t, PhasePartialFailure, s.Phase)
	assert.Equal(t, []string{"a", "b", "c"}, s.Order())
	assert.Len(t, s.ImportErrors, 3)
}

func TestReconcile_MultipleMessagesForOneRow(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Errored: []ImportErrorRecord{
			{Row: 3, Message: "Invalid date"},
			{Row: 3, Message: "Invalid amount"},
		},
	}})

	rows := s.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].ID)
	assert.Equal(t, "Invalid date; Invalid amount", rows[0].ImportError)
}

func TestReconcile_MalformedResponseActsLikeTransportFailure(t *testing.T) {
	tests := []struct {
		name string
		resp *BatchResponse
	}{
		{name: "nil response", resp: nil},
		{name: "position zero", resp: &BatchResponse{Errored: []ImportErrorRecord{{Row: 0, Message: "x"}}}},
		{name: "position past end", resp: &BatchResponse{Errored: []ImportErrorRecord{{Row: 4, Message: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := submitted(t)
			s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: tt.resp})

			assert.Equal(t, PhaseReviewing, s.Phase)
			assert.False(t, s.Saving)
			assert.Equal(t, []string{"a", "b", "c"}, s.Order())
			assert.Empty(t, s.ImportErrors)
			assert.ErrorIs(t, s.SubmitError, ErrMalformedResponse)
		})
	}
}

func TestReconcile_EditAfterPartialFailureReopensReview(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Errored: []ImportErrorRecord{{Row: 2, Message: "Invalid date"}},
	}})

	s = mustReduce(t, s, EditRow{ID: "b", Field: FieldDate, Value: "2024-01-31"})
	assert.Equal(t, PhaseReviewing, s.Phase)
	assert.True(t, s.CanSubmit())

	s = mustReduce(t, s, SubmitStarted{})
	assert.Empty(t, s.ImportErrors, "a new submission clears previous import errors")
	assert.Empty(t, s.Rows()[0].ImportError)
}

func TestReconcile_ClearImportErrorsKeepsRows(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Errored: []ImportErrorRecord{{Row: 1, Message: "Unknown category"}},
	}})

	s = mustReduce(t, s, ClearImportErrors{})
	assert.Empty(t, s.ImportErrors)
	assert.Equal(t, []string{"a"}, s.Order())
	assert.Empty(t, s.Rows()[0].ImportError)
}

func TestReconcile_DeleteFailedRowDropsItsRecord(t *testing.T) {
	s := submitted(t)
	s = mustReduce(t, s, SubmitResponded{Gen: s.SubmitGen(), Response: &BatchResponse{
		Errored: []ImportErrorRecord{{Row: 1, Message: "x"}, {Row: 3, Message: "y"}},
	}})

	s = mustReduce(t, s, DeleteRow{ID: "a"})
	assert.Equal(t, PhaseReviewing, s.Phase)
	require.Len(t, s.ImportErrors, 1)
	assert.Equal(t, "c", s.ImportErrors[0].RowID)
}

func TestReconcile_RequiresReconcilingPhase(t *testing.T) {
	s := reviewing(t, validRow("a"))
	_, err := Reconcile(s, &BatchResponse{})
	assert.ErrorIs(t, err, ErrStale)
}
