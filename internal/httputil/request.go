// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the service client:
// authorized JSON requests, status checks and response decoding that
// classify failures with apierr.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/pkg/types"
)

// maxErrorBody caps how much of an unexpected response body is kept as
// the error payload.
const maxErrorBody = 64 << 10

// NewJSONRequest builds a request whose body is v encoded as JSON.
func NewJSONRequest(ctx context.Context, method, url string, v any) (*http.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Authorize sets the API key and bearer token headers for sess.
func Authorize(req *http.Request, sess types.Session) {
	req.Header.Set("X-API-Key", sess.ClientID)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
}

// Do executes req. A cancelled or expired context is returned wrapped so
// errors.Is still matches it; any other client failure becomes a
// transport error for op.
func Do(ctx context.Context, client *http.Client, req *http.Request, op string) (*http.Response, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, apierr.Transport(op, err)
	}
	return resp, nil
}

// ExpectStatus returns nil when resp carries one of the wanted status
// codes. Otherwise it reads the body (up to a limit) into a protocol
// error and closes it.
func ExpectStatus(resp *http.Response, op string, want ...int) error {
	for _, code := range want {
		if resp.StatusCode == code {
			return nil
		}
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if resp.Request != nil && resp.Request.URL != nil {
		msg += " from " + resp.Request.URL.Redacted()
	}
	return apierr.Protocol(op, msg, payload)
}

// ExpectSuccess is ExpectStatus for any 2xx code.
func ExpectSuccess(resp *http.Response, op string) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	return ExpectStatus(resp, op)
}

// DecodeJSON reads the whole body, closes it and unmarshals it into v.
// It returns the raw body so callers can keep the full payload.
func DecodeJSON(resp *http.Response, op string, v any) ([]byte, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Transport(op, fmt.Errorf("reading response: %w", err))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return raw, apierr.Protocol(op, fmt.Sprintf("parsing response: %v", err), raw)
	}
	return raw, nil
}

// Drain discards the rest of the body and closes it so the connection
// can be reused.
func Drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Redact drops the query string, which carries signatures on pre-signed
// upload and download locations. Use it for anything logged or stored.
func Redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
