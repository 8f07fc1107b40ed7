// Package codes records redemption codes extracted during claims in an
// append-only text file.
package codes

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultSeparator ends every record.
const DefaultSeparator = "========================\n========================"

// Sink receives codes from successful claims.
type Sink interface {
	Append(gameTitle, code, instructions string) error
}

// File is a Sink backed by a text file opened in append mode for each
// write, so earlier records are never touched. It is safe for concurrent use.
type File struct {
	path      string
	separator string
	mu        sync.Mutex
}

// NewFile returns a File sink writing to path. An empty separator selects
// DefaultSeparator.
func NewFile(path, separator string) *File {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &File{path: path, separator: separator}
}

// Path returns the file the sink appends to.
func (f *File) Path() string { return f.path }

// Append writes one record and syncs it to disk.
func (f *File) Append(gameTitle, code, instructions string) error {
	rec := Format(gameTitle, code, instructions, f.separator)

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("codes: open %s: %w", f.path, err)
	}
	if _, err := file.WriteString(rec); err != nil {
		file.Close()
		return fmt.Errorf("codes: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("codes: sync: %w", err)
	}
	return file.Close()
}

// Format renders one record:
//
//	<gameTitle>: <code>
//
//	<instructions on one line>
//	<separator>
func Format(gameTitle, code, instructions, separator string) string {
	return fmt.Sprintf("%s: %s\n\n%s\n%s\n", gameTitle, code, collapseLines(instructions), separator)
}

func collapseLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }), " ")
}
