// Package hostsfile computes the canonical service hostname mapping and
// idempotently patches it into a hosts-file-shaped document between a pair
// of sentinel comments.
package hostsfile

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/local-ai-packaged/orchestrator/internal/fsutil"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

const (
	openSentinel  = "# >>> local-ai-packaged"
	closeSentinel = "# <<< local-ai-packaged"
)

// CanonicalHostnames returns the fixed set of service hostnames the core
// manages.
func CanonicalHostnames() []string {
	names := []string{
		"raven.lan", "n8n.lan", "openwebui.lan", "studio.lan", "comfyui.lan",
		"whisper.lan", "va.lan", "nocodb.lan", "crawl4ai.lan", "qdrant.lan",
		"lmstudio.lan", "kokoro.lan", "traefik.lan", "flowise.lan",
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted
}

// CorruptError is returned when the sentinel pair in an existing file is
// unbalanced.
type CorruptError struct {
	Path string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("hostsfile: %s has an unbalanced sentinel block", e.Path)
}

// UnwritableError wraps a permission failure writing the hosts file, with a
// remediation hint attached.
type UnwritableError struct {
	Path string
	Err  error
}

func (e *UnwritableError) Error() string {
	return fmt.Sprintf("hostsfile: cannot write %s: %v (rerun with elevated privileges, or edit the file manually)", e.Path, e.Err)
}

func (e *UnwritableError) Unwrap() error { return e.Err }

// Reconcile ensures hostsPath contains exactly one sentinel-delimited block
// mapping every canonical hostname to address. Absence of the file is
// treated as an empty document.
func Reconcile(hostsPath string, address string, logger *logging.Logger) error {
	existing, err := fsutil.ReadText(hostsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		existing = ""
	}

	withoutBlock, err := excise(existing, hostsPath)
	if err != nil {
		return err
	}

	block := renderBlock(address)
	updated := appendBlock(withoutBlock, block)

	if err := fsutil.ReplaceAtomically(hostsPath, updated, logger); err != nil {
		return &UnwritableError{Path: hostsPath, Err: err}
	}

	return nil
}

func excise(content, path string) (string, error) {
	lines := strings.Split(content, "\n")

	openIdx, closeIdx := -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case openSentinel:
			if openIdx != -1 {
				return "", &CorruptError{Path: path}
			}
			openIdx = i
		case closeSentinel:
			if closeIdx != -1 || openIdx == -1 {
				return "", &CorruptError{Path: path}
			}
			closeIdx = i
		}
	}

	if (openIdx == -1) != (closeIdx == -1) {
		return "", &CorruptError{Path: path}
	}
	if openIdx == -1 {
		return content, nil
	}

	remaining := append(append([]string{}, lines[:openIdx]...), lines[closeIdx+1:]...)
	return strings.Join(remaining, "\n"), nil
}

func renderBlock(address string) string {
	var b strings.Builder
	b.WriteString(openSentinel)
	b.WriteByte('\n')
	for _, hostname := range CanonicalHostnames() {
		fmt.Fprintf(&b, "%s\t%s\n", address, hostname)
	}
	b.WriteString(closeSentinel)
	b.WriteByte('\n')
	return b.String()
}

func appendBlock(content, block string) string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return block
	}
	return trimmed + "\n\n" + block
}
