package types

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	quickNodeListsURL     = "https://api.quicknode.com/kv/rest/v1/lists"
	quickNodeTimeout      = 10 * time.Second
	quickNodeMaxBodyBytes = 4 << 20
)

// QuickNodeKVProvider reads lists from the QuickNode key-value store.
// Config: api_key (required), base_url, timeout_seconds.
type QuickNodeKVProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ ListProvider = (*QuickNodeKVProvider)(nil)

type quickNodeListResponse struct {
	Data struct {
		Items []string `json:"items"`
	} `json:"data"`
}

func NewQuickNodeKVProvider() *QuickNodeKVProvider {
	return &QuickNodeKVProvider{
		baseURL:    quickNodeListsURL,
		httpClient: &http.Client{Timeout: quickNodeTimeout},
	}
}

func (p *QuickNodeKVProvider) Name() string {
	return "quicknode-kv"
}

func (p *QuickNodeKVProvider) Initialize(config map[string]interface{}) error {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		return fmt.Errorf("quicknode-kv provider requires 'api_key' in config")
	}
	p.apiKey = apiKey

	if base, _ := config["base_url"].(string); base != "" {
		if _, err := url.Parse(base); err != nil {
			return fmt.Errorf("quicknode-kv base_url: %w", err)
		}
		p.baseURL = strings.TrimSuffix(base, "/")
	}
	if secs, ok := config["timeout_seconds"].(int); ok && secs > 0 {
		p.httpClient.Timeout = time.Duration(secs) * time.Second
	}
	return nil
}

// FetchList returns the trimmed, non-empty items stored under key.
func (p *QuickNodeKVProvider) FetchList(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("list key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, quickNodeMaxBodyBytes)
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, fmt.Errorf("list %s: unexpected status code %d: %s", key, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out quickNodeListResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("list %s: decode: %w", key, err)
	}

	items := make([]string, 0, len(out.Data.Items))
	for _, item := range out.Data.Items {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

func (p *QuickNodeKVProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
