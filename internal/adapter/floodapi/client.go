package floodapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/observability"
)

const (
	endpointList   = "list"
	endpointDetail = "detail"
)

// Client implements domain.WarningSource against the flood warning HTTP API.
// It keeps no cache of its own; callers decide what to reuse.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a warning service client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// ListWarningIDs returns the active warning IDs for a region. The service
// answers with either a JSON array of IDs or an object keyed by ID; both are
// returned in document order. Any other shape yields an empty list.
func (c *Client) ListWarningIDs(ctx context.Context, region string) ([]domain.WarningID, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("state", region)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String(), endpointList)
	if err != nil {
		return nil, err
	}

	ids, err := decodeWarningIDs(body)
	if err != nil {
		c.logger.Warn("list response not decodable", "region", region, "error", err)
		return nil, fmt.Errorf("decode warning list: %w", err)
	}
	return ids, nil
}

// WarningDetail fetches the raw bulletin for one warning.
func (c *Client) WarningDetail(ctx context.Context, id domain.WarningID) (domain.RawBulletin, error) {
	fullURL := fmt.Sprintf("%s/warning/%s", c.baseURL, url.PathEscape(string(id)))

	body, err := c.get(ctx, fullURL, endpointDetail)
	if err != nil {
		return domain.RawBulletin{}, err
	}

	var raw domain.RawBulletin
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.RawBulletin{}, fmt.Errorf("decode warning %s: %w", id, err)
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.APIRequests.WithLabelValues(endpoint, "http_error").Inc()
		c.logger.Warn("warning service error", "endpoint", endpoint, "status", resp.StatusCode, "url", fullURL)
		return nil, &domain.TransportError{Op: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.metrics.APIRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

// decodeWarningIDs walks the top-level JSON value token by token so object
// keys keep their document order, which a map decode would lose.
func decodeWarningIDs(body []byte) ([]domain.WarningID, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return []domain.WarningID{}, nil
	}
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return []domain.WarningID{}, nil
	}

	ids := []domain.WarningID{}
	switch delim {
	case '[':
		for dec.More() {
			var elem json.RawMessage
			if err := dec.Decode(&elem); err != nil {
				return nil, err
			}
			var id string
			if json.Unmarshal(elem, &id) == nil {
				ids = append(ids, domain.WarningID(id))
			}
		}
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			ids = append(ids, domain.WarningID(key))
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return ids, nil
}
