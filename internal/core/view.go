package core

// RowView is one visible row with its display position (1-based) and validation problems.
type RowView struct {
	WorkingRow
	Position int          `json:"position"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// View is the read model handed to the rendering layer.
type View struct {
	SessionID        string              `json:"sessionId"`
	Version          uint64              `json:"version"`
	Phase            Phase               `json:"phase"`
	Loading          bool                `json:"loading"`
	Saving           bool                `json:"saving"`
	ShowImportDialog bool                `json:"showImportDialog"`
	Rows             []RowView           `json:"rows"`
	ImportErrors     []ImportErrorRecord `json:"importErrors"`
	InvalidCount     int                 `json:"invalidCount"`
	CanSubmit        bool                `json:"canSubmit"`
	LoadError        *UserMessage        `json:"loadError,omitempty"`
	SubmitError      *UserMessage        `json:"submitError,omitempty"`
}

func buildView(id string, version uint64, s State) View {
	rows := make([]RowView, 0, len(s.ix.order))
	for i, row := range s.ix.ordered() {
		rows = append(rows, RowView{
			WorkingRow: row,
			Position:   i + 1,
			Errors:     s.ix.errors[row.ID],
		})
	}

	importErrors := make([]ImportErrorRecord, len(s.ImportErrors))
	copy(importErrors, s.ImportErrors)

	return View{
		SessionID:        id,
		Version:          version,
		Phase:            s.Phase,
		Loading:          s.Loading,
		Saving:           s.Saving,
		ShowImportDialog: s.ShowImportDialog,
		Rows:             rows,
		ImportErrors:     importErrors,
		InvalidCount:     s.InvalidCount(),
		CanSubmit:        s.CanSubmit(),
		LoadError:        userMessage(s.LoadError),
		SubmitError:      userMessage(s.SubmitError),
	}
}

func userMessage(err error) *UserMessage {
	if err == nil {
		return nil
	}
	msg := MapError(err)
	return &msg
}

// Row returns the visible row with the given id.
func (v View) Row(id string) (RowView, bool) {
	for _, r := range v.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return RowView{}, false
}
