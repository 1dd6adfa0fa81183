package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"
)

// DocumentStore is a thread-safe store for document contents keyed by URI.
type DocumentStore struct {
	documents map[string]string
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]string)}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// uriFilename returns the file path of a document URI; the extension picks
// the grammar.
func uriFilename(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Path == "" {
		return uri
	}

	return filepath.FromSlash(parsed.Path)
}

// lineText returns the 0-based line of text without its line terminator.
func lineText(text string, line int) string {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}

	return strings.TrimRight(lines[line], "\r")
}

// utf16Column converts a 0-based byte column of line into UTF-16 code units.
func utf16Column(line string, byteColumn int) int {
	byteColumn = min(byteColumn, len(line))
	units := 0

	for _, r := range line[:byteColumn] {
		units += utf16.RuneLen(r)
	}

	return units
}

// byteOffset converts a 0-based line and UTF-16 character to a byte offset.
func byteOffset(text string, line, character int) int {
	offset := 0

	for current := 0; current < line; current++ {
		next := strings.IndexByte(text[offset:], '\n')
		if next < 0 {
			return len(text)
		}

		offset += next + 1
	}

	units := 0

	for units < character && offset < len(text) && text[offset] != '\n' {
		r, size := utf8.DecodeRuneInString(text[offset:])
		units += utf16.RuneLen(r)
		offset += size
	}

	return offset
}
