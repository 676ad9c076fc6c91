package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/txnimport/internal/attachment"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/parser"
)

type editRowRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var req editRowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	v, err := sess.EditRow(chi.URLParam(r, "rowID"), req.Field, req.Value)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	v, err := sess.DeleteRow(chi.URLParam(r, "rowID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleAttachReceipt validates the uploaded receipt and records the outcome on
// the row. A rejected receipt is not an HTTP error: the row shows why.
func (s *Server) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	rowID := chi.URLParam(r, "rowID")

	if _, ok := sess.Snapshot().Row(rowID); !ok {
		s.respondError(w, r, errRowMissing(rowID), 0)
		return
	}

	var receipt *core.Receipt
	file, header, verr := formFile(w, r, s.receipts.MaxSize)
	switch {
	case errors.Is(verr, parser.ErrFileTooLarge):
		verr = fmt.Errorf("%w: limit is %d bytes", attachment.ErrTooLarge, s.receipts.MaxSize)
	case verr != nil:
		s.respondError(w, r, verr, 0)
		return
	default:
		defer file.Close()
		receipt, verr = s.receipts.Validate(header.Filename, file, header.Size)
	}

	v, err := sess.AttachReceipt(rowID, receipt, verr)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleClearImportErrors(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sess.ClearImportErrors())
}
