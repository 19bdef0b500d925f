// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/formflow/internal/apierr"
)

// minimalPDF builds a well-formed PDF with the given number of blank
// pages and a correct cross-reference table.
func minimalPDF(pages int) []byte {
	var objects []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages),
	)
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestInspectPDF(t *testing.T) {
	data := minimalPDF(2)
	path := writeFile(t, "form.pdf", data)

	doc, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, int64(len(data)), doc.Size)
	assert.Equal(t, MediaTypePDF, doc.MediaType)
	assert.Equal(t, 2, doc.Pages)
}

func TestInspectNonPDF(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("plain text"))

	doc, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MediaType)
	assert.Zero(t, doc.Pages)
}

func TestInspectRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.pdf")
			},
		},
		{
			name: "directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "empty file",
			setup: func(t *testing.T) string {
				return writeFile(t, "empty.pdf", nil)
			},
		},
		{
			name: "corrupt pdf",
			setup: func(t *testing.T) string {
				return writeFile(t, "corrupt.pdf", []byte("this is not a pdf at all"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.setup(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, apierr.ErrConfiguration)
		})
	}
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a/form.pdf", "application/pdf"},
		{"FORM.PDF", "application/pdf"},
		{"data.json", "application/json"},
		{"blob.unknownext", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaType(tt.path))
		})
	}
}
