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

// YahooFetcher reads rates from the Yahoo Finance chart API, using the
// regular market price of a pair such as "ETH-USD".
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
	Symbols map[model.Currency]string
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, symbols map[model.Currency]string) *YahooFetcher {
	if symbols == nil {
		symbols = map[model.Currency]string{model.CurrencyUSD: "ETH-USD"}
	}
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  newClient(proxyURL),
		Symbols: symbols,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the part of the chart API response we read.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) FetchRate(ctx context.Context, c model.Currency) (sdkmath.Int, error) {
	symbol, ok := f.Symbols[c]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("no yahoo symbol for currency %s: %w", c, ErrNoPrice)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", f.BaseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return sdkmath.Int{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return sdkmath.Int{}, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return sdkmath.Int{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return sdkmath.Int{}, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.RegularMarketPrice == "" {
		return sdkmath.Int{}, fmt.Errorf("yahoo %s: %w", symbol, ErrNoPrice)
	}
	// Decoded as json.Number so the quote keeps its decimal digits exactly.
	return parseRate(chart.Chart.Result[0].Meta.RegularMarketPrice.String())
}
