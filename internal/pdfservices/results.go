// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfservices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
)

const (
	opFetchJSON = "fetch result json"
	opFetchFile = "fetch result file"
)

// FetchJSON downloads the JSON document at downloadURI. Download
// locations are pre-signed, so no authorization headers are sent.
func (c *Client) FetchJSON(ctx context.Context, downloadURI string) (json.RawMessage, error) {
	resp, err := c.get(ctx, opFetchJSON, downloadURI)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Transport(opFetchJSON, fmt.Errorf("reading response: %w", err))
	}
	if !json.Valid(data) {
		return nil, apierr.Protocol(opFetchJSON, "result is not valid JSON", data)
	}
	return json.RawMessage(data), nil
}

// FetchToFile streams the document at downloadURI to destPath through a
// temporary file in the same directory, replacing any existing file once
// the stream has been fully written and flushed.
func (c *Client) FetchToFile(ctx context.Context, downloadURI, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	resp, err := c.get(ctx, opFetchFile, downloadURI)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".formflow-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	syncErr := tmpFile.Sync()
	modeErr := tmpFile.Chmod(outputMode(destPath))
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", opFetchFile, ctx.Err())
		}
		return apierr.Transport(opFetchFile, fmt.Errorf("writing download: %w", copyErr))
	}
	if syncErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("flushing temp file: %w", syncErr)
	}
	if modeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting file mode: %w", modeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// outputMode keeps the permissions of an existing destination and uses
// 0644 for new files. Temp files are created 0600.
func outputMode(destPath string) os.FileMode {
	if info, err := os.Stat(destPath); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return 0o644
}

// get issues an unauthenticated GET and requires HTTP 200.
func (c *Client) get(ctx context.Context, op, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, apierr.Protocol(op, fmt.Sprintf("invalid download location: %v", err), nil)
	}
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, op)
	if err != nil {
		return nil, err
	}
	c.traceRequest(op, req.Method, uri, resp.StatusCode, start)

	if err := httputil.ExpectStatus(resp, op, http.StatusOK); err != nil {
		return nil, err
	}
	return resp, nil
}
