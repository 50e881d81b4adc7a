// Package docqa answers questions about local documents by framing the
// document as context for a single completion request.
package docqa

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ReadFunc extracts the text content of one document format.
type ReadFunc func(path string) (string, error)

// UnsupportedFormatError reports a file extension with no registered
// reader.
type UnsupportedFormatError struct {
	Ext       string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s. Supported formats are: %s",
		e.Ext, strings.Join(e.Supported, ", "))
}

// Reader extracts text from documents, dispatching on file extension.
type Reader struct {
	readers map[string]ReadFunc
}

// NewReader creates a reader for the plain-text formats.
func NewReader() *Reader {
	return &Reader{
		readers: map[string]ReadFunc{
			".txt": readTextFile,
			".md":  readTextFile,
			".log": readTextFile,
		},
	}
}

// Register adds or replaces the reader for an extension (with leading
// dot, lowercase).
func (r *Reader) Register(ext string, fn ReadFunc) {
	r.readers[ext] = fn
}

// SupportedFormats returns the registered extensions, sorted.
func (r *Reader) SupportedFormats() []string {
	formats := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

// Read returns the text content of the document at path. A missing
// file surfaces as an fs.ErrNotExist error; an unregistered extension
// as an *UnsupportedFormatError.
func (r *Reader) Read(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	read, ok := r.readers[ext]
	if !ok {
		return "", &UnsupportedFormatError{Ext: ext, Supported: r.SupportedFormats()}
	}
	return read(path)
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", filepath.Base(path))
	}
	return string(data), nil
}
