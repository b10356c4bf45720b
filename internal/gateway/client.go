package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/rsainju/pasalmart/pkg/errors"
	"github.com/rsainju/pasalmart/pkg/logger"
)

const maxResponseBytes = 1 << 20

type sessionControl interface {
	IsAuthenticated() bool
	Credential() string
	ExpireCredential(ctx context.Context) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the single outbound chokepoint to the backend. It attaches the
// current bearer credential to every call and destroys the session when the
// backend rejects it. No retries happen at this layer.
type Client struct {
	http    httpDoer
	baseURL string
	session sessionControl
	logg    *logger.Logger
}

// NewClient builds the backend client with the configured timeout.
func NewClient(baseURL string, timeout time.Duration, session sessionControl, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("backend base url required")
	}
	if session == nil {
		return nil, fmt.Errorf("session store required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		logg:    logg,
	}, nil
}

// PostJSON sends body as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
	}
	return c.call(ctx, http.MethodPost, path, bytes.NewReader(encoded), out)
}

// GetJSON issues a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session.IsAuthenticated() {
		req.Header.Set("Authorization", "Bearer "+c.session.Credential())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "backend unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		// Callers must not assume the session still exists after this.
		if expireErr := c.session.ExpireCredential(ctx); expireErr != nil && c.logg != nil {
			c.logg.Error(ctx, "failed to expire rejected credential", expireErr)
		}
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "backend rejected credential")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("backend returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode, "path": path})
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := decoder.Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "malformed backend response")
	}
	return nil
}
