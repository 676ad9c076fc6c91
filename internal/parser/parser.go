// Package parser turns uploaded transaction files into raw import rows.
//
// Supported formats are CSV, XLSX and legacy XLS. Every parser looks for a
// header row near the top of the first sheet, maps columns by name using
// configurable aliases, and returns one core.RawRow per non-empty data row.
// Parsers do not validate cell contents; that is the engine's job.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/txnimport/internal/core"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrHeaderNotFound  = errors.New("header row not found")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoFile          = errors.New("no file provided")
)

// Parser reads one file format.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) ([]core.RawRow, error)
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// DefaultRegistry returns a registry with the CSV, XLSX and XLS parsers using cols.
func DefaultRegistry(cols Columns) *Registry {
	r := NewRegistry()
	r.Register(".csv", &CSVParser{Columns: cols})
	r.Register(".xlsx", &XLSXParser{Columns: cols})
	r.Register(".xls", &XLSParser{Columns: cols})
	return r
}

// Register adds a parser for ext. Panics on a duplicate extension.
func (r *Registry) Register(ext string, p Parser) {
	key := normalizeExt(ext)
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser extension: " + key)
	}
	r.parsers[key] = p
}

// ForFile returns the parser for the extension of name.
func (r *Registry) ForFile(name string) (Parser, error) {
	ext := normalizeExt(filepath.Ext(name))
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedType, ext, strings.Join(r.Extensions(), ", "))
	}
	return p, nil
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Loader returns a LoadFunc that parses data as the file called name.
// The parser is chosen up front so an unsupported type fails before any async work starts.
// An empty file of a supported type loads as zero rows.
func (r *Registry) Loader(name string, data []byte) (core.LoadFunc, error) {
	p, err := r.ForFile(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) ([]core.RawRow, error) {
		if len(data) == 0 {
			return nil, nil
		}
		return p.Parse(ctx, bytes.NewReader(data))
	}, nil
}

// ReadLimited reads all of r, failing with ErrFileTooLarge past maxSize bytes.
// maxSize <= 0 means unlimited.
func ReadLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}
	return data, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
