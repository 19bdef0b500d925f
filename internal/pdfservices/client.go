// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfservices is a client for the remote PDF form-data service:
// token exchange, asset upload, job submission, status polling and result
// retrieval. It performs no retries; every failure is returned classified
// by apierr and the caller decides what to do with it.
package pdfservices

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/internal/logging"
	"github.com/pdiddy/formflow/pkg/types"
)

// Default endpoints of the hosted service.
const (
	DefaultAuthURL       = "https://pdf-services-ue1.adobe.io"
	DefaultAssetsURL     = "https://pdf-services.adobe.io"
	DefaultOperationsURL = "https://pdf-services-ue1.adobe.io"

	defaultTimeout = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	Service    types.ServiceConfig
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client issues the individual service calls. It holds no per-run state;
// the session is passed to each authorized call.
type Client struct {
	http          *http.Client
	authURL       string
	assetsURL     string
	operationsURL string
	userAgent     string
	log           logging.Logger
}

// NewClient constructs a client, filling unset endpoints and the HTTP
// client with defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Service.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:          httpClient,
		authURL:       baseOr(opts.Service.AuthURL, DefaultAuthURL),
		assetsURL:     baseOr(opts.Service.AssetsURL, DefaultAssetsURL),
		operationsURL: baseOr(opts.Service.OperationsURL, DefaultOperationsURL),
		userAgent:     opts.Service.UserAgent,
		log:           logging.OrDiscard(opts.Logger),
	}
}

func baseOr(u, fallback string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u == "" {
		return fallback
	}
	return u
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// traceRequest logs the outcome of one call at debug level.
func (c *Client) traceRequest(op, method, url string, status int, start time.Time) {
	c.log.Debug().
		Str("req_id", uuid.NewString()).
		Str("op", op).
		Str("method", method).
		Str("url", httputil.Redact(url)).
		Int("status", status).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("pdfservices.http")
}
