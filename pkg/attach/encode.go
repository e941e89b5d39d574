package attach

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

const fallbackMime = "application/octet-stream"

// Encoded is a transport-ready attachment: the pending file plus its derived
// payload fields and the base64 data URI over its content.
type Encoded struct {
	PendingFile
	// FileExtension is the filename part after the last dot, empty if none.
	FileExtension string
	// FileType is the coarse MIME class (the part before "/"), defaulting
	// to "application" when the MIME type is unknown.
	FileType string
	// Data is a data URI with a base64 body.
	Data string
}

// Encode reads every pending file and produces its data URI, concurrently
// but merged back in original selection order. The first failure cancels the
// remaining reads and aborts the whole batch: no partial result is ever
// returned.
func Encode(ctx context.Context, files []PendingFile) ([]Encoded, error) {
	if len(files) == 0 {
		return []Encoded{}, nil
	}

	out := make([]Encoded, len(files))
	g, ctx := errgroup.WithContext(ctx)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			enc, err := encodeOne(ctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w: %v", f.Name, ErrEncodingFailure, err)
			}
			out[i] = enc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeOne(ctx context.Context, f PendingFile) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}
	if f.Open == nil {
		return Encoded{}, fmt.Errorf("no content handle")
	}

	r, err := f.Open()
	if err != nil {
		return Encoded{}, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return Encoded{}, err
	}
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}

	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = fallbackMime
	}

	return Encoded{
		PendingFile:   f,
		FileExtension: extensionOf(f.Name),
		FileType:      coarseType(f.MimeType),
		Data:          "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func extensionOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func coarseType(mimeType string) string {
	if mimeType == "" {
		return "application"
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[:i]
	}
	return mimeType
}
