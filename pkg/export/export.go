// Package export writes a record's images out of the store, either as a PDF
// with one page per image or as individual files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/entrhq/recordbook/pkg/records"
)

// ErrUnsupported is returned when an image cannot be placed in a PDF.
var ErrUnsupported = errors.New("export: unsupported image type")

// pdfTypes are the media types pdfcpu can import.
var pdfTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/tiff": true,
	"image/webp": true,
}

func init() {
	// keep pdfcpu from creating a config directory under the user's home
	model.ConfigPath = "disable"
}

// PDF writes rec as a PDF document to w, one page per image in order.
func PDF(w io.Writer, rec records.Record) error {
	if len(rec.Images) == 0 {
		return fmt.Errorf("export: record %q has no images", rec.Title)
	}

	readers := make([]io.Reader, len(rec.Images))
	for i, img := range rec.Images {
		mediaType, data, err := img.Decode()
		if err != nil {
			return fmt.Errorf("export: image %d: %w", i, err)
		}
		if !pdfTypes[mediaType] {
			return fmt.Errorf("%w: image %d is %s", ErrUnsupported, i, mediaType)
		}
		readers[i] = bytes.NewReader(data)
	}

	conf := model.NewDefaultConfiguration()
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImages(nil, w, readers, imp, conf); err != nil {
		return fmt.Errorf("export: build pdf: %w", err)
	}
	return nil
}

// PDFFile writes rec to a PDF at path.
func PDFFile(path string, rec records.Record) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return PDF(f, rec)
}

// Files decodes each image into dir as 01.<ext>, 02.<ext>, ... and returns
// the written paths.
func Files(dir string, rec records.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}

	paths := make([]string, 0, len(rec.Images))
	for i, img := range rec.Images {
		mediaType, data, err := img.Decode()
		if err != nil {
			return paths, fmt.Errorf("export: image %d: %w", i, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d%s", i+1, extension(mediaType, data)))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("export: write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func extension(mediaType string, data []byte) string {
	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if len(data) == 0 {
		return ".bin"
	}
	// text/plain is the sniffer's catch-all for anything printable
	detected := mimetype.Detect(data)
	if detected.Is("application/octet-stream") ||
		(detected.Is("text/plain") && !strings.HasPrefix(mediaType, "text/")) {
		return ".bin"
	}
	if ext := detected.Extension(); ext != "" {
		return ext
	}
	return ".bin"
}
