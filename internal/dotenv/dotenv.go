// Package dotenv is a round-trip-preserving store for the operator's .env
// configuration file. It edits in place: comments, blank lines, and key
// order all survive a load-edit-save cycle unchanged except where the
// caller explicitly asked for a change.
package dotenv

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/local-ai-packaged/orchestrator/internal/fsutil"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

// PoolerTenantIDKey is the one derived key the core inserts when absent.
const PoolerTenantIDKey = "POOLER_TENANT_ID"

// DefaultPoolerTenantID is the value inserted for PoolerTenantIDKey when missing.
const DefaultPoolerTenantID = "1000"

var assignmentPattern = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*=`)

// EntryKind distinguishes the three line shapes a Document can hold.
type EntryKind int

const (
	KindComment EntryKind = iota
	KindBlank
	KindAssignment
)

// Entry is one line of a Document.
type Entry struct {
	Kind EntryKind
	// Text holds the raw line for Comment and Blank entries.
	Text string
	// Key, Value, RawSuffix are populated for Assignment entries. RawSuffix
	// holds any trailing inline comment, including its leading whitespace.
	Key       string
	Value     string
	RawSuffix string
}

// Document is the parsed, ordered form of a .env file.
type Document struct {
	entries []Entry
	index   map[string]int
}

// ParseError reports a line that is neither a comment, blank, nor a valid
// assignment.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dotenv: line %d does not match comment/blank/assignment grammar: %q", e.Line, e.Text)
}

// Load reads path and parses it into a Document.
func Load(path string) (*Document, error) {
	content, err := fsutil.ReadText(path)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

// Parse builds a Document from raw file content.
func Parse(content string) (*Document, error) {
	doc := &Document{index: make(map[string]int)}

	lines := splitKeepingTerminator(content)
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")

		switch {
		case strings.TrimSpace(trimmed) == "":
			doc.entries = append(doc.entries, Entry{Kind: KindBlank, Text: line})
		case strings.HasPrefix(strings.TrimSpace(trimmed), "#"):
			doc.entries = append(doc.entries, Entry{Kind: KindComment, Text: line})
		case assignmentPattern.MatchString(trimmed):
			key, value, suffix := splitAssignment(trimmed)
			doc.index[key] = len(doc.entries)
			doc.entries = append(doc.entries, Entry{
				Kind:      KindAssignment,
				Key:       key,
				Value:     value,
				RawSuffix: suffix,
				Text:      line,
			})
		default:
			return nil, &ParseError{Line: i + 1, Text: trimmed}
		}
	}

	return doc, nil
}

// splitKeepingTerminator splits content into lines, preserving each line's
// original terminator (or lack thereof on the final line) so Serialize can
// reproduce CRLF/LF verbatim.
func splitKeepingTerminator(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

func splitAssignment(line string) (key, value, suffix string) {
	eq := strings.IndexByte(line, '=')
	key = strings.TrimSpace(line[:eq])
	rest := line[eq+1:]

	if idx := strings.Index(rest, " #"); idx >= 0 {
		value = rest[:idx]
		suffix = rest[idx:]
		return key, value, suffix
	}
	return key, rest, ""
}

// Get returns the value for key and whether it was present.
func (d *Document) Get(key string) (string, bool) {
	idx, ok := d.index[key]
	if !ok {
		return "", false
	}
	return d.entries[idx].Value, true
}

// SetOrAppend sets key to value, mutating the existing assignment in place
// if present or appending a new one (with an optional leading comment) at
// end-of-file. It returns true if the document's contents changed.
func (d *Document) SetOrAppend(key, value string, leadingComment string) bool {
	if idx, ok := d.index[key]; ok {
		if d.entries[idx].Value == value {
			return false
		}
		d.entries[idx].Value = value
		d.entries[idx].Text = ""
		return true
	}

	if leadingComment != "" {
		d.entries = append(d.entries, Entry{Kind: KindComment, Text: leadingComment})
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, Entry{Kind: KindAssignment, Key: key, Value: value})
	return true
}

// EnsureDefault appends key=default (with an optional leading comment) only
// if key is not already present. Returns true iff the document changed.
func (d *Document) EnsureDefault(key, defaultValue, leadingComment string) bool {
	if _, ok := d.index[key]; ok {
		return false
	}
	return d.SetOrAppend(key, defaultValue, leadingComment)
}

// EnsurePoolerTenantID applies the one derived-key default the core knows
// about.
func (d *Document) EnsurePoolerTenantID() bool {
	return d.EnsureDefault(PoolerTenantIDKey, DefaultPoolerTenantID, "")
}

// Serialize renders the Document back to text, byte-stable modulo explicit
// edits.
func (d *Document) Serialize() string {
	var b strings.Builder
	for i, e := range d.entries {
		last := i == len(d.entries)-1
		switch e.Kind {
		case KindComment, KindBlank:
			b.WriteString(e.Text)
			if !last && !strings.HasSuffix(e.Text, "\n") {
				b.WriteByte('\n')
			}
		case KindAssignment:
			if e.Text != "" {
				b.WriteString(e.Text)
				if !last && !strings.HasSuffix(e.Text, "\n") {
					b.WriteByte('\n')
				}
			} else {
				fmt.Fprintf(&b, "%s=%s%s\n", e.Key, e.Value, e.RawSuffix)
			}
		}
	}
	return b.String()
}

// Save writes the Document to path via atomic replace, but only if the
// serialized content differs from what is already on disk.
func (d *Document) Save(path string, logger *logging.Logger) error {
	rendered := d.Serialize()

	existing, err := fsutil.ReadText(path)
	if err == nil && existing == rendered {
		return nil
	}

	return fsutil.ReplaceAtomically(path, rendered, logger)
}
