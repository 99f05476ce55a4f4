package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxSize caps a single image at 20 MiB.
const DefaultMaxSize = 20 * 1024 * 1024

// ErrEncoding matches every *EncodingError.
var ErrEncoding = errors.New("photo: encoding failed")

// EncodingError reports that a source could not be converted.
type EncodingError struct {
	Name string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("photo: encode %q: %v", e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEncoding) true for any EncodingError.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Source is a named, file-like binary blob.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads from a path on disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource wraps an in-memory blob.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Encoder converts a source into its durable representation.
type Encoder interface {
	Encode(ctx context.Context, src Source) (Durable, error)
}

// DataURLEncoder builds base64 data URLs, sniffing the media type from content.
type DataURLEncoder struct {
	// MaxSize is the largest accepted payload in bytes. Zero means DefaultMaxSize.
	MaxSize int64
}

// NewDataURLEncoder returns an encoder with the default size limit.
func NewDataURLEncoder() *DataURLEncoder {
	return &DataURLEncoder{MaxSize: DefaultMaxSize}
}

// Encode implements Encoder.
func (e *DataURLEncoder) Encode(ctx context.Context, src Source) (Durable, error) {
	fail := func(err error) (Durable, error) {
		return Durable{}, &EncodingError{Name: src.Name, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if src.Open == nil {
		return fail(errors.New("source has no reader"))
	}

	rc, err := src.Open()
	if err != nil {
		return fail(err)
	}
	defer rc.Close()

	limit := e.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return fail(err)
	}
	if int64(len(data)) > limit {
		return fail(fmt.Errorf("image exceeds %d bytes", limit))
	}
	if len(data) == 0 {
		return fail(errors.New("empty image"))
	}

	// reading may have taken a while; a cancelled batch must not produce results
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	return newDurable(detectMediaType(data), data), nil
}

func detectMediaType(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" {
		return "application/octet-stream"
	}
	return mt
}

// EncodeBatch converts all sources concurrently. The result order matches the
// input order. If any conversion fails, the batch fails as a whole and no
// results are returned.
func EncodeBatch(ctx context.Context, enc Encoder, sources []Source) ([]Durable, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	out := make([]Durable, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			d, err := enc.Encode(gctx, src)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
