// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source inspects the local document that a run uploads.
package source

import (
	"errors"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdiddy/formflow/internal/apierr"
)

const opInspect = "inspect source"

// MediaTypePDF is the media type of PDF documents.
const MediaTypePDF = "application/pdf"

// Document describes a source file ready for upload.
type Document struct {
	Path      string
	Size      int64
	MediaType string

	// Pages is the page count of a PDF source; zero for other types.
	Pages int
}

// Inspect stats path and derives its media type from the extension. PDF
// sources are parsed so a corrupt file is rejected before anything is
// uploaded. Every failure is a configuration error.
func Inspect(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, apierr.Configuration(opInspect, "source file %s does not exist", path)
		}
		return Document{}, apierr.Configuration(opInspect, "reading source %s: %v", path, err)
	}
	if info.IsDir() {
		return Document{}, apierr.Configuration(opInspect, "source %s is a directory", path)
	}
	if info.Size() == 0 {
		return Document{}, apierr.Configuration(opInspect, "source %s is empty", path)
	}

	doc := Document{
		Path:      path,
		Size:      info.Size(),
		MediaType: MediaType(path),
	}
	if doc.MediaType != MediaTypePDF {
		return doc, nil
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return Document{}, apierr.Configuration(opInspect, "source %s is not a readable PDF: %v", path, err)
	}
	doc.Pages = pages
	return doc, nil
}

// MediaType returns the media type for path's extension, falling back to
// application/octet-stream.
func MediaType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return MediaTypePDF
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
