package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/parser"
)

// multipartOverhead is allowed on top of the file limit for form boundaries and headers.
const multipartOverhead = 1 << 20

// maxJSONBody bounds JSON command bodies.
const maxJSONBody = 64 << 10

var errBadRequest = errors.New("bad request")

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON decodes a small JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// session resolves the {id} route parameter.
func (s *Server) session(r *http.Request) (*core.Session, error) {
	return s.manager.Get(chi.URLParam(r, "id"))
}

// formFile returns the "file" part of a multipart request limited to maxSize bytes.
// The caller closes the returned file.
func formFile(w http.ResponseWriter, r *http.Request, maxSize int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, fmt.Errorf("%w: limit is %d bytes", parser.ErrFileTooLarge, maxSize)
		}
		return nil, nil, fmt.Errorf("%w: %v", parser.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, parser.ErrNoFile
	}
	return file, header, nil
}
