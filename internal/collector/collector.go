// Package collector keeps the exchange rates used to convert payments and
// targets between currencies.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

var rateOne = sdkmath.NewIntWithDecimal(1, calculator.WeightDecimals)

type quote struct {
	rate sdkmath.Int
	at   time.Time
}

// Oracle caches rates fetched from a Fetcher. A rate older than MaxAge is
// refused rather than used.
type Oracle struct {
	fetcher    Fetcher
	currencies []model.Currency
	maxAge     time.Duration
	log        *logrus.Entry
	now        func() time.Time

	mu     sync.RWMutex
	quotes map[model.Currency]quote
}

// NewOracle creates an oracle for the given non-base currencies. A zero
// maxAge never expires rates.
func NewOracle(fetcher Fetcher, currencies []model.Currency, maxAge time.Duration, log *logrus.Entry) *Oracle {
	return &Oracle{
		fetcher:    fetcher,
		currencies: currencies,
		maxAge:     maxAge,
		log:        log,
		now:        time.Now,
		quotes:     make(map[model.Currency]quote),
	}
}

// Refresh fetches every configured currency. A failed fetch keeps the
// previous rate and is reported in the returned error.
func (o *Oracle) Refresh(ctx context.Context) error {
	var errs []error
	for _, c := range o.currencies {
		if c == model.CurrencyBase {
			continue
		}
		rate, err := o.fetcher.FetchRate(ctx, c)
		if err != nil {
			o.log.WithError(err).WithField("currency", c).Warn("rate refresh failed, keeping previous rate")
			errs = append(errs, fmt.Errorf("%s currency %s: %w", o.fetcher.Name(), c, err))
			continue
		}
		o.Set(c, rate)
		o.log.WithFields(logrus.Fields{"currency": c, "rate": rate.String()}).Debug("rate refreshed")
	}
	return errors.Join(errs...)
}

// Set stores a rate observed now.
func (o *Oracle) Set(c model.Currency, rate sdkmath.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[c] = quote{rate: rate, at: o.now()}
}

// Rate returns how many units of c one base unit buys, with 18 decimals.
func (o *Oracle) Rate(c model.Currency) (sdkmath.Int, error) {
	if c == model.CurrencyBase {
		return rateOne, nil
	}
	o.mu.RLock()
	q, ok := o.quotes[c]
	o.mu.RUnlock()
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("currency %s: %w", c, ErrNoPrice)
	}
	if o.maxAge > 0 && o.now().Sub(q.at) > o.maxAge {
		return sdkmath.Int{}, fmt.Errorf("currency %s rate from %s is stale: %w", c, q.at.Format(time.RFC3339), ErrNoPrice)
	}
	return q.rate, nil
}

// Convert expresses amount of from in units of to, floored.
func (o *Oracle) Convert(amount sdkmath.Int, from, to model.Currency) (sdkmath.Int, error) {
	if from == to {
		return amount, nil
	}
	fromRate, err := o.Rate(from)
	if err != nil {
		return sdkmath.Int{}, err
	}
	toRate, err := o.Rate(to)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return calculator.MulDiv(amount, toRate, fromRate)
}
