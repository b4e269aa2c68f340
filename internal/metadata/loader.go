package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPLoader reads the protocol and chain metadata documents over HTTP.
type HTTPLoader struct {
	client       *http.Client
	protocolsURL string
	chainsURL    string
}

func NewHTTPLoader(protocolsURL, chainsURL string, timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		client:       &http.Client{Timeout: timeout},
		protocolsURL: protocolsURL,
		chainsURL:    chainsURL,
	}
}

func (l *HTTPLoader) Load(ctx context.Context) (*Snapshot, error) {
	var protocols map[string]ProtocolMeta
	if err := l.getJSON(ctx, l.protocolsURL, &protocols); err != nil {
		return nil, fmt.Errorf("protocol metadata: %w", err)
	}
	var chains map[string]ChainMeta
	if err := l.getJSON(ctx, l.chainsURL, &chains); err != nil {
		return nil, fmt.Errorf("chain metadata: %w", err)
	}
	return NewSnapshot(protocols, chains, time.Now()), nil
}

func (l *HTTPLoader) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
