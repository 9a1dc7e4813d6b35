package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bibo40140/caisse-backend/pkg/config"
	"github.com/bibo40140/caisse-backend/pkg/types"
)

// ServerClient is the terminal's view of the sync endpoints.
type ServerClient interface {
	PushOps(ctx context.Context, req types.PushOpsRequest) (*types.PushOpsResponse, error)
	PullRefs(ctx context.Context, since time.Time) (*types.PullRefsResponse, error)
	BootstrapNeeded(ctx context.Context) (bool, error)
	Bootstrap(ctx context.Context, req types.BootstrapRequest) (*types.BootstrapResponse, error)
}

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds the JSON client used against the central server.
func NewHTTPClient(cfg config.SyncConfig) (ServerClient, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("sync server url is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		token:   cfg.AuthToken,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *httpClient) PushOps(ctx context.Context, req types.PushOpsRequest) (*types.PushOpsResponse, error) {
	var resp types.PushOpsResponse
	if err := c.do(ctx, http.MethodPost, "/sync/push_ops", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) PullRefs(ctx context.Context, since time.Time) (*types.PullRefsResponse, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	var resp types.PullRefsResponse
	if err := c.do(ctx, http.MethodGet, "/sync/pull_refs", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) BootstrapNeeded(ctx context.Context) (bool, error) {
	var resp types.BootstrapNeededResponse
	if err := c.do(ctx, http.MethodGet, "/sync/bootstrap_needed", nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.Needed, nil
}

func (c *httpClient) Bootstrap(ctx context.Context, req types.BootstrapRequest) (*types.BootstrapResponse, error) {
	var resp types.BootstrapResponse
	if err := c.do(ctx, http.MethodPost, "/sync/bootstrap", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var envelope types.ErrorEnvelope
		if decodeErr := json.NewDecoder(res.Body).Decode(&envelope); decodeErr == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, envelope.Error.Message, envelope.Error.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, res.StatusCode)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding %s payload: %w", path, err)
	}
	return nil
}
