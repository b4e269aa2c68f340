// Package llama is the typed HTTP client for the DeFi analytics upstreams.
//
// Every fetch builds a full URL, performs a GET bound to the caller's
// context, rejects non-2xx responses and decodes into a typed payload. Shape
// checks that the downstream merge relies on happen here, so a malformed
// payload surfaces as an error at the fetch boundary.
package llama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/web3-frozen/defi-overview/internal/metrics"
)

// Endpoints holds the base URLs of every upstream the client talks to.
type Endpoints struct {
	Llama              string
	Yields             string
	FECache            string
	DevMetrics         string
	NFT                string
	Articles           string
	Bridges            string
	GovernanceSnapshot string
	GovernanceCompound string
	GovernanceTally    string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Llama:              "https://api.llama.fi",
		Yields:             "https://yields.llama.fi",
		FECache:            "https://fe-cache.llama.fi",
		DevMetrics:         "https://raw.githubusercontent.com/DefiLlama/dev-metrics/master/output",
		NFT:                "https://nft.llama.fi",
		Articles:           "https://fe-cache.llama.fi/news/articles",
		Bridges:            "https://bridges.llama.fi",
		GovernanceSnapshot: "https://defillama-datasets.llama.fi/governance-cache/overview/snapshot",
		GovernanceCompound: "https://defillama-datasets.llama.fi/governance-cache/overview/compound",
		GovernanceTally:    "https://defillama-datasets.llama.fi/governance-cache/overview/tally",
	}
}

// Cache stores raw upstream bodies keyed by URL. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type Client struct {
	client    *http.Client
	endpoints Endpoints
	cache     Cache
}

// NewClient returns a client for the given endpoints. cache may be nil.
func NewClient(endpoints Endpoints, timeout time.Duration, cache Cache) *Client {
	return &Client{
		client:    &http.Client{Timeout: timeout},
		endpoints: endpoints,
		cache:     cache,
	}
}

func (c *Client) Endpoints() Endpoints { return c.endpoints }

// httpGet returns the body at url and whether it was served from the cache.
// Fresh bodies are not cached here; see remember.
func (c *Client) httpGet(ctx context.Context, url string) ([]byte, bool, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, url)
		switch {
		case err != nil:
			metrics.UpstreamCacheTotal.WithLabelValues("error").Inc()
		case ok:
			metrics.UpstreamCacheTotal.WithLabelValues("hit").Inc()
			return body, true, nil
		default:
			metrics.UpstreamCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", url, err)
	}
	return body, false, nil
}

// remember caches a body once it has decoded and passed its shape checks.
func (c *Client) remember(ctx context.Context, url string, body []byte) {
	if c.cache == nil {
		return
	}
	// A failed write only costs a refetch next time.
	_ = c.cache.Set(ctx, url, body)
}

// getJSON decodes the body at url into v. check, when set, validates the
// decoded value; only bodies that pass are cached.
func (c *Client) getJSON(ctx context.Context, url string, v any, check func() error) error {
	body, cached, err := c.httpGet(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	if !cached {
		c.remember(ctx, url, body)
	}
	return nil
}

// getWrapped decodes endpoints that return {"body": "<json string>"}.
// A null or empty body decodes to nothing and reports false.
func (c *Client) getWrapped(ctx context.Context, url string, v any) (bool, error) {
	body, cached, err := c.httpGet(ctx, url)
	if err != nil {
		return false, err
	}
	var wrapper struct {
		Body *string `json:"body"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return false, fmt.Errorf("decode %s: %w", url, err)
	}
	found := wrapper.Body != nil && *wrapper.Body != "" && *wrapper.Body != "null"
	if found {
		if err := json.Unmarshal([]byte(*wrapper.Body), v); err != nil {
			return false, fmt.Errorf("decode body of %s: %w", url, err)
		}
	}
	if !cached {
		c.remember(ctx, url, body)
	}
	return found, nil
}
