package web

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/JonMunkholm/txnimport/internal/parser"
)

// handleUploadFile starts loading an import file into the session.
// Parsing runs in the background; the response is 202 with the loading view.
// A file rejected up front still replaces the working set, so the view shows
// the load error instead of the previous file's rows.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	name, load, size, err := s.readUpload(w, r)
	if err != nil {
		if _, rerr := sess.RejectLoad(err); rerr != nil {
			err = rerr
		}
		s.respondError(w, r, err, 0)
		return
	}

	v, err := s.manager.Load(r.Context(), sess, load)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "session_id", sess.ID()).Info("import file accepted",
		"file", name,
		"bytes", size,
	)
	writeJSON(w, http.StatusAccepted, v)
}

// readUpload reads the multipart file and picks its parser.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, core.LoadFunc, int, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	file, header, err := formFile(w, r, maxSize)
	if err != nil {
		return "", nil, 0, err
	}
	defer file.Close()

	data, err := readFile(file, header, maxSize)
	if err != nil {
		return header.Filename, nil, 0, err
	}

	load, err := s.parsers.Loader(header.Filename, data)
	if err != nil {
		return header.Filename, nil, 0, err
	}
	return header.Filename, load, len(data), nil
}

func readFile(file io.Reader, header *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if header.Size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", parser.ErrFileTooLarge, header.Size)
	}
	return parser.ReadLimited(file, maxSize)
}

// handleSubmit sends the working set to the batch endpoint.
// 202 means the batch is in flight; reconciliation arrives on the event stream.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	v, err := sess.Submit(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, v)
}

func errRowMissing(id string) error {
	return fmt.Errorf("%w: %s", core.ErrRowNotFound, id)
}
