package nlp

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
	defaultUDPipeURL   = "https://lindat.mff.cuni.cz/services/udpipe/api"
	defaultUDPipeModel = "french-gsd"
)

// UDPipeParser parses text through a UDPipe REST service.
type UDPipeParser struct {
	baseURL string
	model   string
	client  *http.Client
}

// UDPipeOption configures a UDPipeParser.
type UDPipeOption func(*UDPipeParser)

// WithUDPipeURL sets the service base URL.
func WithUDPipeURL(u string) UDPipeOption {
	return func(p *UDPipeParser) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUDPipeModel selects the language model.
func WithUDPipeModel(model string) UDPipeOption {
	return func(p *UDPipeParser) {
		p.model = model
	}
}

// WithUDPipeHTTPClient sets a custom HTTP client.
func WithUDPipeHTTPClient(client *http.Client) UDPipeOption {
	return func(p *UDPipeParser) {
		p.client = client
	}
}

// NewUDPipeParser creates a parser for the public LINDAT service unless
// overridden.
func NewUDPipeParser(opts ...UDPipeOption) *UDPipeParser {
	p := &UDPipeParser{
		baseURL: defaultUDPipeURL,
		model:   defaultUDPipeModel,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type udpipeResponse struct {
	Model  string `json:"model"`
	Result string `json:"result"`
}

// Parse tokenizes, tags and parses text.
func (p *UDPipeParser) Parse(ctx context.Context, text string) ([]Sentence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	form := url.Values{
		"model":     {p.model},
		"tokenizer": {""},
		"tagger":    {""},
		"parser":    {""},
		"data":      {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/process", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("udpipe request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("udpipe error (status %d): %s", resp.StatusCode, string(body))
	}

	var out udpipeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	sentences, err := ReadCoNLLU(strings.NewReader(out.Result))
	if err != nil {
		return nil, fmt.Errorf("decode udpipe result: %w", err)
	}
	return sentences, nil
}

// CoNLLUParser adapts pre-parsed CoNLL-U documents, keyed by the exact
// input text, to the Parser interface. Useful for fixtures and offline
// batches.
type CoNLLUParser struct {
	docs map[string]string
}

// NewCoNLLUParser creates an empty CoNLLUParser.
func NewCoNLLUParser() *CoNLLUParser {
	return &CoNLLUParser{docs: make(map[string]string)}
}

// Add registers the CoNLL-U analysis of text.
func (p *CoNLLUParser) Add(text, conllu string) {
	p.docs[strings.TrimSpace(text)] = conllu
}

func (p *CoNLLUParser) Parse(_ context.Context, text string) ([]Sentence, error) {
	doc, ok := p.docs[strings.TrimSpace(text)]
	if !ok {
		return nil, fmt.Errorf("no analysis registered for %q", text)
	}
	return ReadCoNLLU(strings.NewReader(doc))
}
