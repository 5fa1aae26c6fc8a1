package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

// QuoteFetcher reads rates from a REST quote endpoint returning
// {"price": <decimal>} for a symbol.
type QuoteFetcher struct {
	BaseURL string
	APIKey  string
	Symbols map[model.Currency]string
	Client  *http.Client
}

// NewQuoteFetcher creates a fetcher with optional proxy support.
func NewQuoteFetcher(baseURL, apiKey, proxyURL string, symbols map[model.Currency]string) *QuoteFetcher {
	return &QuoteFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Symbols: symbols,
		Client:  newClient(proxyURL),
	}
}

func (f *QuoteFetcher) Name() string { return "quote" }

func (f *QuoteFetcher) FetchRate(ctx context.Context, c model.Currency) (sdkmath.Int, error) {
	symbol, ok := f.Symbols[c]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("no symbol for currency %s: %w", c, ErrNoPrice)
	}
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return sdkmath.Int{}, fmt.Errorf("fetch quote: status %d, body: %s", resp.StatusCode, string(body))
	}
	var result struct {
		Price json.Number `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return sdkmath.Int{}, fmt.Errorf("decode quote: %w", err)
	}
	return parseRate(result.Price.String())
}
