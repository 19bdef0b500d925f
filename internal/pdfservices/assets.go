// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfservices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

const (
	opUploadSlot = "request upload slot"
	opUpload     = "upload"
)

type uploadSlotRequest struct {
	MediaType string `json:"mediaType"`
}

// RequestUploadSlot asks the service for a write-once upload location for
// a payload of mediaType.
func (c *Client) RequestUploadSlot(ctx context.Context, sess types.Session, mediaType string) (types.Asset, error) {
	endpoint := c.assetsURL + "/assets"
	req, err := httputil.NewJSONRequest(ctx, http.MethodPost, endpoint, uploadSlotRequest{MediaType: mediaType})
	if err != nil {
		return types.Asset{}, err
	}
	httputil.Authorize(req, sess)
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, opUploadSlot)
	if err != nil {
		return types.Asset{}, err
	}
	c.traceRequest(opUploadSlot, req.Method, endpoint, resp.StatusCode, start)

	if err := httputil.ExpectSuccess(resp, opUploadSlot); err != nil {
		return types.Asset{}, err
	}

	var asset types.Asset
	raw, err := httputil.DecodeJSON(resp, opUploadSlot, &asset)
	if err != nil {
		return types.Asset{}, err
	}
	if asset.ID == "" || asset.UploadURI == "" {
		return types.Asset{}, apierr.Protocol(opUploadSlot, "response is missing assetID or uploadUri", raw)
	}
	asset.MediaType = mediaType
	return asset, nil
}

// Upload streams the file at sourcePath to the asset's upload location.
// The length is declared up front from the file size. Only HTTP 200
// counts as success; any other status is fatal.
func (c *Client) Upload(ctx context.Context, asset types.Asset, sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return apierr.Configuration(opUpload, "reading source %s: %v", sourcePath, err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return apierr.Configuration(opUpload, "opening source %s: %v", sourcePath, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, asset.UploadURI, f)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.ContentLength = info.Size()
	// Re-open the file so redirected PUTs resend the body.
	req.GetBody = func() (io.ReadCloser, error) {
		return os.Open(sourcePath)
	}
	req.Header.Set("Content-Type", asset.MediaType)
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, opUpload)
	if err != nil {
		return err
	}
	c.traceRequest(opUpload, req.Method, asset.UploadURI, resp.StatusCode, start)

	if err := httputil.ExpectStatus(resp, opUpload, http.StatusOK); err != nil {
		return err
	}
	httputil.Drain(resp)

	c.log.Info().Str("asset_id", asset.ID).Int64("bytes", info.Size()).Msg("pdfservices.upload.done")
	return nil
}
