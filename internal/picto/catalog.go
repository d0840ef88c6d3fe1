package picto

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
	defaultArasaacURL       = "https://api.arasaac.org/v1"
	defaultArasaacStaticURL = "https://static.arasaac.org"
	defaultCatalogTimeout   = 5 * time.Second
)

// Keyword is one label of a catalog symbol.
type Keyword struct {
	Keyword string `json:"keyword"`
	Plural  string `json:"plural,omitempty"`
}

// UnmarshalJSON accepts both {"keyword": ...} objects and bare strings.
func (k *Keyword) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Keyword = s
		return nil
	}
	type plain Keyword
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*k = Keyword(p)
	return nil
}

// Candidate is one search hit from the catalog.
type Candidate struct {
	ID         int       `json:"_id"`
	Keywords   []Keyword `json:"keywords"`
	Tags       []string  `json:"tags"`
	Categories []string  `json:"categories"`
}

// Catalog searches a pictogram catalog.
type Catalog interface {
	// Search returns at most limit candidates for term.
	Search(ctx context.Context, term string, limit int) ([]Candidate, error)
	// SymbolURL returns the image URL of a symbol.
	SymbolURL(id int) string
}

// ArasaacClient implements Catalog against the ARASAAC REST API.
type ArasaacClient struct {
	baseURL   string
	staticURL string
	lang      string
	client    *http.Client
}

// ArasaacOption configures an ArasaacClient.
type ArasaacOption func(*ArasaacClient)

// WithArasaacBaseURL sets the API base URL (for testing).
func WithArasaacBaseURL(u string) ArasaacOption {
	return func(c *ArasaacClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithArasaacStaticURL sets the image host.
func WithArasaacStaticURL(u string) ArasaacOption {
	return func(c *ArasaacClient) {
		c.staticURL = strings.TrimRight(u, "/")
	}
}

// WithArasaacLanguage sets the search language.
func WithArasaacLanguage(lang string) ArasaacOption {
	return func(c *ArasaacClient) {
		c.lang = lang
	}
}

// WithArasaacHTTPClient sets a custom HTTP client.
func WithArasaacHTTPClient(client *http.Client) ArasaacOption {
	return func(c *ArasaacClient) {
		c.client = client
	}
}

// WithArasaacTimeout sets the per-request timeout.
func WithArasaacTimeout(d time.Duration) ArasaacOption {
	return func(c *ArasaacClient) {
		c.client = &http.Client{Timeout: d}
	}
}

// NewArasaacClient creates a French ARASAAC client with a 5s timeout.
func NewArasaacClient(opts ...ArasaacOption) *ArasaacClient {
	c := &ArasaacClient{
		baseURL:   defaultArasaacURL,
		staticURL: defaultArasaacStaticURL,
		lang:      "fr",
		client:    &http.Client{Timeout: defaultCatalogTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries /pictograms/{lang}/search/{term}. ARASAAC answers 404
// when nothing matches, which is reported as an empty result.
func (c *ArasaacClient) Search(ctx context.Context, term string, limit int) ([]Candidate, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/pictograms/%s/search/%s", c.baseURL, c.lang, url.PathEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arasaac search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("arasaac api error (status %d): %s", resp.StatusCode, string(body))
	}

	var results []Candidate
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SymbolURL returns the 500px PNG of a pictogram.
func (c *ArasaacClient) SymbolURL(id int) string {
	return fmt.Sprintf("%s/pictograms/%d/%d_500.png", c.staticURL, id, id)
}
