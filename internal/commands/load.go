package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/parser"
)

// ErrInvalidRows is returned when a file loads but some rows fail validation.
var ErrInvalidRows = errors.New("file has invalid rows")

// loadSession parses path into a fresh session and waits for the load to finish.
// The session is returned even when the load reported an error.
func loadSession(ctx context.Context, path string, cfg *FileConfig, submitter core.Submitter) (*core.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := parser.ReadLimited(f, cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	load, err := parser.DefaultRegistry(cfg.Columns).Loader(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(uuid.NewString(), submitter, core.SessionConfig{
		SubmitTimeout: cfg.Timeout,
		MaxRows:       cfg.MaxRows,
	}, slog.Default().With("file", filepath.Base(path)))
	sess.Open()
	if _, err := sess.StartLoad(ctx, load); err != nil {
		return nil, err
	}
	sess.Wait()

	if err := sess.State().LoadError; err != nil {
		return sess, core.NewUserError(err)
	}
	return sess, nil
}

// printProblems writes one line per invalid field and returns the invalid row count.
func printProblems(w io.Writer, v core.View) int {
	for _, row := range v.Rows {
		for _, fe := range row.Errors {
			fmt.Fprintf(w, "row %d: %s: %s\n", row.Position, fe.Field, fe.Message)
		}
		if row.ReceiptError != "" {
			fmt.Fprintf(w, "row %d: receipt: %s\n", row.Position, row.ReceiptError)
		}
	}
	return v.InvalidCount
}
