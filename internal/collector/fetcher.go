package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

// ErrNoPrice is returned when no usable rate is known for a currency.
var ErrNoPrice = errors.New("price unavailable")

// Fetcher returns how many units of a currency one base unit buys, with 18
// decimals. The base currency itself is never fetched.
type Fetcher interface {
	FetchRate(ctx context.Context, c model.Currency) (sdkmath.Int, error)
	Name() string
}

// StaticFetcher serves fixed rates, for development and tests.
type StaticFetcher struct {
	Rates map[model.Currency]sdkmath.Int
}

func (s *StaticFetcher) Name() string { return "static" }

func (s *StaticFetcher) FetchRate(_ context.Context, c model.Currency) (sdkmath.Int, error) {
	r, ok := s.Rates[c]
	if !ok || r.IsNil() || !r.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("static rate for currency %s: %w", c, ErrNoPrice)
	}
	return r, nil
}

// parseRate turns a decimal quote into an 18-decimal fixed-point rate.
func parseRate(s string) (sdkmath.Int, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if !dec.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("rate %q must be positive: %w", s, ErrNoPrice)
	}
	return sdkmath.NewIntFromBigInt(dec.BigInt()), nil
}

// newClient returns an HTTP client for quote feeds, routed through proxyURL
// when one is given.
func newClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}
