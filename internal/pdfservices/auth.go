// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfservices

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

const opAuthenticate = "authenticate"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges client credentials for a bearer token. A bad
// credential will not succeed on retry, so none is attempted.
func (c *Client) Authenticate(ctx context.Context, creds types.Credentials) (types.Session, error) {
	if !creds.Complete() {
		return types.Session{}, apierr.Configuration(opAuthenticate, "client_id and client_secret are required")
	}

	form := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}
	endpoint := c.authURL + "/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return types.Session{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, opAuthenticate)
	if err != nil {
		return types.Session{}, err
	}
	c.traceRequest(opAuthenticate, req.Method, endpoint, resp.StatusCode, start)

	if err := httputil.ExpectSuccess(resp, opAuthenticate); err != nil {
		return types.Session{}, err
	}

	var tr tokenResponse
	raw, err := httputil.DecodeJSON(resp, opAuthenticate, &tr)
	if err != nil {
		return types.Session{}, err
	}
	if tr.AccessToken == "" {
		return types.Session{}, apierr.Protocol(opAuthenticate, "response has no access_token", raw)
	}

	c.log.Info().Int("expires_in", tr.ExpiresIn).Msg("pdfservices.token.acquired")
	return types.Session{ClientID: creds.ClientID, Token: tr.AccessToken}, nil
}
