// Package attachment checks receipt files before they are attached to an import row.
package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/txnimport/internal/core"
)

var (
	ErrTooLarge   = errors.New("receipt too large")
	ErrTypeDenied = errors.New("receipt type not allowed")
	ErrEmpty      = errors.New("receipt is empty")
)

// DefaultMaxSize is the receipt size limit used when none is configured.
const DefaultMaxSize = 5 << 20

// DefaultTypes maps accepted extensions to the content type the file must sniff as.
var DefaultTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// Validator accepts or rejects a receipt by extension, sniffed content type and size.
type Validator struct {
	MaxSize int64
	Types   map[string]string
}

// NewValidator builds a validator. allowed lists extensions to keep from
// DefaultTypes; an empty list keeps all of them.
func NewValidator(maxSize int64, allowed []string) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	types := make(map[string]string)
	if len(allowed) == 0 {
		for ext, ct := range DefaultTypes {
			types[ext] = ct
		}
	}
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ct, ok := DefaultTypes[ext]; ok {
			types[ext] = ct
		}
	}
	return &Validator{MaxSize: maxSize, Types: types}
}

// Validate reads the receipt and returns it ready to attach.
// size is the declared size; pass -1 when unknown.
func (v *Validator) Validate(name string, r io.Reader, size int64) (*core.Receipt, error) {
	if size > v.MaxSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, humanSize(size), humanSize(v.MaxSize))
	}

	ext := strings.ToLower(filepath.Ext(name))
	want, ok := v.Types[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (accepted: %s)", ErrTypeDenied, ext, strings.Join(v.extensions(), ", "))
	}

	data, err := io.ReadAll(io.LimitReader(r, v.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	if int64(len(data)) > v.MaxSize {
		return nil, fmt.Errorf("%w: exceeds %s", ErrTooLarge, humanSize(v.MaxSize))
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, want) {
		return nil, fmt.Errorf("%w: %s content does not look like %s", ErrTypeDenied, ext, want)
	}

	return &core.Receipt{
		FileName:    filepath.Base(name),
		ContentType: want,
		Size:        int64(len(data)),
		Data:        bytes.Clone(data),
	}, nil
}

func (v *Validator) extensions() []string {
	exts := make([]string, 0, len(v.Types))
	for ext := range v.Types {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
