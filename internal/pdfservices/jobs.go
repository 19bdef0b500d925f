// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfservices

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

type extractRequest struct {
	AssetID string `json:"assetID"`
}

type injectRequest struct {
	AssetID string       `json:"assetID"`
	Fields  types.Record `json:"jsonFormFieldsData"`
}

// SubmitExtract starts a job that reads the form field values of asset.
// It returns the job's status location.
func (c *Client) SubmitExtract(ctx context.Context, sess types.Session, asset types.Asset) (string, error) {
	return c.submit(ctx, sess, types.JobExtract, extractRequest{AssetID: asset.ID})
}

// SubmitInject starts a job that writes record into the form fields of
// asset. It returns the job's status location.
func (c *Client) SubmitInject(ctx context.Context, sess types.Session, asset types.Asset, record types.Record) (string, error) {
	return c.submit(ctx, sess, types.JobInject, injectRequest{AssetID: asset.ID, Fields: record})
}

// submit posts body to the kind's operation endpoint. The status location
// comes from the Location header, never from the body.
func (c *Client) submit(ctx context.Context, sess types.Session, kind types.JobKind, body any) (string, error) {
	op := "submit " + string(kind)
	endpoint := c.operationsURL + "/operation/" + string(kind)

	req, err := httputil.NewJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	httputil.Authorize(req, sess)
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, op)
	if err != nil {
		return "", err
	}
	c.traceRequest(op, req.Method, endpoint, resp.StatusCode, start)

	if err := httputil.ExpectSuccess(resp, op); err != nil {
		return "", err
	}
	httputil.Drain(resp)

	location := resp.Header.Get("Location")
	if location == "" {
		return "", apierr.Protocol(op, "response has no location header", nil)
	}
	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", apierr.Protocol(op, "malformed location header "+location, nil)
	}

	c.log.Info().Str("kind", string(kind)).Str("status_uri", httputil.Redact(location)).Msg("pdfservices.job.created")
	return location, nil
}
