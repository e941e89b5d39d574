package attach

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFile(name, mimeType, content string) PendingFile {
	return PendingFile{
		Name:      name,
		SizeBytes: int64(len(content)),
		MimeType:  mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func brokenFile(name string) PendingFile {
	return PendingFile{
		Name:      name,
		SizeBytes: 3,
		MimeType:  "text/plain",
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("read denied")
		},
	}
}

func TestPolicyRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxFileSize: 4}
	err := policy.Validate(memFile("big.txt", "text/plain", "hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.NoError(t, policy.Validate(memFile("ok.txt", "text/plain", "hey")))
}

func TestPolicyTypePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patterns []string
		file     PendingFile
		ok       bool
	}{
		{"exact mime", []string{"application/pdf"}, memFile("a.pdf", "application/pdf", "x"), true},
		{"exact mime mismatch", []string{"application/pdf"}, memFile("a.txt", "text/plain", "x"), false},
		{"mime wildcard", []string{"image/*"}, memFile("a.png", "image/png", "x"), true},
		{"mime wildcard mismatch", []string{"image/*"}, memFile("a.txt", "text/plain", "x"), false},
		{"extension", []string{".pdf"}, memFile("report.pdf", "", "x"), true},
		{"extension case-insensitive", []string{".pdf"}, memFile("report.PDF", "", "x"), true},
		{"extension mismatch", []string{".pdf"}, memFile("report.docx", "", "x"), false},
		{"any of several", []string{"image/*", ".pdf"}, memFile("report.PDF", "", "x"), true},
		{"empty list admits all", nil, memFile("whatever.bin", "", "x"), true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Policy{AllowedTypes: tc.patterns}.Validate(tc.file)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrFileTypeRejected)
			}
		})
	}
}

func TestSelectReplacesAndKeepsValidSiblings(t *testing.T) {
	t.Parallel()

	var list List
	policy := Policy{MaxFileSize: 10}

	errs := list.Select([]PendingFile{memFile("old.txt", "text/plain", "x")}, policy)
	require.Empty(t, errs)
	require.Equal(t, 1, list.Len())

	// A new selection replaces, not appends; the oversized file is dropped
	// with its own error while siblings survive in order.
	errs = list.Select([]PendingFile{
		memFile("a.txt", "text/plain", "aa"),
		memFile("huge.txt", "text/plain", "aaaaaaaaaaaaaaaa"),
		memFile("b.txt", "text/plain", "bb"),
	}, policy)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrFileTooLarge)

	files := list.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "b.txt", files[1].Name)
}

func TestRemoveAtPreservesOrder(t *testing.T) {
	t.Parallel()

	var list List
	list.Select([]PendingFile{
		memFile("a", "", "1"),
		memFile("b", "", "2"),
		memFile("c", "", "3"),
	}, Policy{})

	require.True(t, list.RemoveAt(1))
	files := list.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].Name)
	assert.Equal(t, "c", files[1].Name)

	assert.False(t, list.RemoveAt(5))
	assert.False(t, list.RemoveAt(-1))

	require.True(t, list.RemoveAt(0))
	require.True(t, list.RemoveAt(0))
	assert.True(t, list.Empty())
}

func TestRemoveAllClearsEverything(t *testing.T) {
	t.Parallel()

	var list List
	list.Select([]PendingFile{memFile("a", "", "1"), memFile("b", "", "2")}, Policy{})
	list.RemoveAll()
	assert.True(t, list.Empty())
	assert.Empty(t, list.Preview())
}

func TestHumanSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HumanSize(tc.n), "n=%d", tc.n)
	}
}

func TestPreviewRows(t *testing.T) {
	t.Parallel()

	var list List
	list.Select([]PendingFile{
		memFile("notes.md", "text/markdown", strings.Repeat("x", 2048)),
		memFile("tiny.txt", "text/plain", "ab"),
	}, Policy{})

	rows := list.Preview()
	require.Len(t, rows, 2)
	assert.Equal(t, PreviewRow{Name: "notes.md", HumanSize: "2.00 KB"}, rows[0])
	assert.Equal(t, PreviewRow{Name: "tiny.txt", HumanSize: "2 Bytes"}, rows[1])
}

func TestEncodePreservesOrderAndDerivesFields(t *testing.T) {
	t.Parallel()

	files := []PendingFile{
		memFile("photo.png", "image/png", "PNGDATA"),
		memFile("README", "", "docs"),
		memFile("archive.tar.gz", "application/gzip", "gz"),
	}

	encoded, err := Encode(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, encoded, 3)

	assert.Equal(t, "photo.png", encoded[0].Name)
	assert.Equal(t, "png", encoded[0].FileExtension)
	assert.Equal(t, "image", encoded[0].FileType)
	assert.Equal(t, "data:image/png;base64,UE5HREFUQQ==", encoded[0].Data)

	assert.Equal(t, "README", encoded[1].Name)
	assert.Equal(t, "", encoded[1].FileExtension, "no dot means no extension")
	assert.Equal(t, "application", encoded[1].FileType, "empty MIME defaults coarse type")
	assert.True(t, strings.HasPrefix(encoded[1].Data, "data:application/octet-stream;base64,"))

	assert.Equal(t, "gz", encoded[2].FileExtension, "extension is after the last dot")
}

func TestEncodeFailureAbortsWholeBatch(t *testing.T) {
	t.Parallel()

	files := []PendingFile{
		memFile("ok1.txt", "text/plain", "a"),
		brokenFile("bad.txt"),
		memFile("ok2.txt", "text/plain", "b"),
	}

	encoded, err := Encode(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodingFailure)
	assert.Nil(t, encoded, "no partial batch on failure")
}

func TestEncodeEmptyList(t *testing.T) {
	t.Parallel()

	encoded, err := Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestFromPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", f.Name)
	assert.Equal(t, int64(11), f.SizeBytes)
	assert.Equal(t, "text/plain", f.MimeType)

	r, err := f.Open()
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))

	_, err = FromPath(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = FromPath(dir)
	assert.Error(t, err, "directories are not attachable")
}

func TestFromPathSniffsMagicBytes(t *testing.T) {
	t.Parallel()

	// Minimal PNG signature; extension deliberately wrong so the sniffer,
	// not the extension, must decide.
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	path := filepath.Join(t.TempDir(), "image.dat")
	require.NoError(t, os.WriteFile(path, png, 0644))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.MimeType)
}
