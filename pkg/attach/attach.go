// Package attach turns user-selected local files into validated, previewable,
// transportable attachments for one outgoing chat message.
package attach

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

var (
	// ErrFileTooLarge rejects a file exceeding the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrFileTypeRejected rejects a file matching none of the allowed type
	// patterns.
	ErrFileTypeRejected = errors.New("file type not allowed")
	// ErrEncodingFailure aborts a submission when any attachment fails to
	// encode.
	ErrEncodingFailure = errors.New("attachment encoding failed")
)

// PendingFile is one user-selected file awaiting submission. Open returns a
// fresh reader over the raw content; it is not called until encoding.
type PendingFile struct {
	Name      string
	SizeBytes int64
	MimeType  string
	Open      func() (io.ReadCloser, error)
}

// FromPath builds a PendingFile for a local path. The MIME type is sniffed
// from the file's magic bytes, falling back to the filename extension.
func FromPath(path string) (PendingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PendingFile{}, err
	}
	if info.IsDir() {
		return PendingFile{}, fmt.Errorf("%s is a directory", path)
	}
	return PendingFile{
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
		MimeType:  sniffMime(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func sniffMime(path string) string {
	if f, err := os.Open(path); err == nil {
		head := make([]byte, 262)
		n, _ := io.ReadFull(f, head)
		f.Close()
		if t, err := filetype.Match(head[:n]); err == nil && t != filetype.Unknown {
			return t.MIME.Value
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		// TypeByExtension may append parameters ("; charset=utf-8").
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return strings.TrimSpace(byExt)
	}
	return ""
}

// Policy is the per-widget acceptance rule for selected files.
type Policy struct {
	// MaxFileSize in bytes; zero or negative disables the size check.
	MaxFileSize int64
	// AllowedTypes patterns: exact MIME ("application/pdf"), MIME-prefix
	// wildcard ("image/*"), or filename extension (".pdf", case-insensitive).
	// Empty admits every type.
	AllowedTypes []string
}

// Validate checks one file against the policy.
func (p Policy) Validate(f PendingFile) error {
	if p.MaxFileSize > 0 && f.SizeBytes > p.MaxFileSize {
		return fmt.Errorf("%s (%s): %w (limit %s)",
			f.Name, HumanSize(f.SizeBytes), ErrFileTooLarge, HumanSize(p.MaxFileSize))
	}
	if len(p.AllowedTypes) == 0 {
		return nil
	}
	for _, pattern := range p.AllowedTypes {
		if matchesType(pattern, f.MimeType, f.Name) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", f.Name, ErrFileTypeRejected)
}

func matchesType(pattern, mimeType, name string) bool {
	pattern = strings.TrimSpace(pattern)
	switch {
	case pattern == "":
		return false
	case strings.HasPrefix(pattern, "."):
		return strings.HasSuffix(strings.ToLower(name), strings.ToLower(pattern))
	case strings.HasSuffix(pattern, "/*"):
		return strings.HasPrefix(mimeType, strings.TrimSuffix(pattern, "*"))
	default:
		return mimeType == pattern
	}
}

// List is the ordered set of attachments pending for the next message. It is
// owned by one widget instance and must only be touched from its event loop.
type List struct {
	files []PendingFile
}

// Select replaces the pending set with the valid files from a new selection,
// in selection order. One error per rejected file is returned; rejected
// files are dropped without blocking their valid siblings.
func (l *List) Select(files []PendingFile, policy Policy) []error {
	var errs []error
	kept := make([]PendingFile, 0, len(files))
	for _, f := range files {
		if err := policy.Validate(f); err != nil {
			errs = append(errs, err)
			continue
		}
		kept = append(kept, f)
	}
	l.files = kept
	return errs
}

// Files returns the pending attachments in order.
func (l *List) Files() []PendingFile {
	out := make([]PendingFile, len(l.files))
	copy(out, l.files)
	return out
}

func (l *List) Len() int { return len(l.files) }

func (l *List) Empty() bool { return len(l.files) == 0 }

// RemoveAt drops the entry at position i, preserving the relative order of
// the rest. Reports whether anything was removed.
func (l *List) RemoveAt(i int) bool {
	if i < 0 || i >= len(l.files) {
		return false
	}
	l.files = append(l.files[:i], l.files[i+1:]...)
	return true
}

// RemoveAll clears the pending set. Used after a successful submit.
func (l *List) RemoveAll() {
	l.files = nil
}

// PreviewRow is one line of the attachment preview.
type PreviewRow struct {
	Name      string
	HumanSize string
}

// Preview renders one row per pending file, in order.
func (l *List) Preview() []PreviewRow {
	rows := make([]PreviewRow, len(l.files))
	for i, f := range l.files {
		rows[i] = PreviewRow{Name: f.Name, HumanSize: HumanSize(f.SizeBytes)}
	}
	return rows
}

// HumanSize formats a byte count: below 1024 as "N Bytes", above divided by
// 1024 repeatedly and labeled KB/MB/GB with two decimal places.
func HumanSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d Bytes", n)
	}
	v := float64(n)
	for _, unit := range []string{"KB", "MB", "GB"} {
		v /= 1024
		if v < 1024 || unit == "GB" {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
	}
	return fmt.Sprintf("%d Bytes", n)
}
