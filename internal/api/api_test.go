package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"CycleLedger/internal/collector"
	"CycleLedger/internal/fund"
	"CycleLedger/internal/model"
	"CycleLedger/internal/recorder"
)

func quiet() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type client struct {
	t *testing.T
	h http.Handler
}

func newClient(t *testing.T) *client {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "events.db"), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	fm, err := fund.NewManager(fund.Options{Governance: "gov", Recorder: rec, Log: quiet()})
	require.NoError(t, err)
	return &client{t: t, h: NewRouter(fm, quiet())}
}

func (c *client) do(method, path string, caller model.Address, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, string(caller))
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

// units returns v whole units at 18 decimals as a JSON amount string.
func units(v int64) string { return fmt.Sprintf("%d000000000000000000", v) }

func TestLedgerFlow(t *testing.T) {
	c := newClient(t)

	code, p := c.do("POST", "/projects", "owner", map[string]string{"handle": "alpha"})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, float64(1), p["id"])

	code, fc := c.do("POST", "/projects/1/configure", "owner", map[string]interface{}{
		"target":        units(10),
		"duration":      "720h",
		"discount_rate": 30,
		"reserved_rate": 2000,
		"mods":          []map[string]interface{}{{"percent": 5000, "beneficiary": "bob"}},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), fc["number"])

	code, paid := c.do("POST", "/projects/1/payments", "alice", map[string]interface{}{"amount": units(15)})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(12_000_000), paid["tickets"])

	code, reserved := c.do("GET", "/projects/1/reserved", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(3_000_000), reserved["printable"])

	code, dist := c.do("POST", "/projects/1/print", "anyone", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(3_000_000), dist["total"])

	code, bob := c.do("GET", "/projects/1/holders/bob", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(1_500_000), bob["staked"])

	code, tapped := c.do("POST", "/projects/1/tap", "owner", map[string]string{"amount": units(4)})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(4), tapped["net"])

	code, funds := c.do("GET", "/projects/1/funds", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, units(11), funds["balance"])
	require.Equal(t, units(5), funds["overflow"])

	code, _ = c.do("POST", "/projects/1/redeem", "alice", map[string]string{
		"count": units(1_000_000), "min_returned": units(1_000),
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do("POST", "/projects/1/redeem", "alice", map[string]string{"count": units(1_000_000)})
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest("GET", "/projects/1/events?limit=3", nil)
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var events []model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 3)
	require.Equal(t, model.EventRedeem, events[0].Kind)
}

func TestErrorStatuses(t *testing.T) {
	c := newClient(t)
	code, _ := c.do("POST", "/projects", "owner", map[string]string{"handle": "alpha"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = c.do("POST", "/projects/1/configure", "owner", map[string]interface{}{"target": units(1), "duration": "24h"})
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name   string
		method string
		path   string
		caller model.Address
		body   interface{}
		want   int
	}{
		{"no caller", "POST", "/projects", "", map[string]string{"handle": "beta"}, http.StatusUnauthorized},
		{"duplicate handle", "POST", "/projects", "bob", map[string]string{"handle": "alpha"}, http.StatusBadRequest},
		{"unknown field", "POST", "/projects", "bob", map[string]string{"name": "x"}, http.StatusBadRequest},
		{"not owner", "POST", "/projects/1/configure", "bob", map[string]interface{}{"target": units(1)}, http.StatusForbidden},
		{"bad duration", "POST", "/projects/1/configure", "owner", map[string]interface{}{"target": units(1), "duration": "soon"}, http.StatusBadRequest},
		{"unknown project", "GET", "/projects/7", "", nil, http.StatusNotFound},
		{"tap beyond balance", "POST", "/projects/1/tap", "owner", map[string]string{"amount": units(1)}, http.StatusConflict},
		{"unpriced currency", "POST", "/projects/1/payments", "alice", map[string]string{"amount": units(1), "currency": "USD"}, http.StatusBadRequest},
		{"fee by non-governance", "POST", "/governance/fee", "owner", map[string]int{"fee": 10}, http.StatusForbidden},
		{"bad limit", "GET", "/projects/1/events?limit=x", "", nil, http.StatusBadRequest},
		{"bad claimable count", "GET", "/projects/1/claimable?count=x", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := c.do(tt.method, tt.path, tt.caller, tt.body)
			require.Equal(t, tt.want, code)
		})
	}
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusOf(fmt.Errorf("x: %w", collector.ErrNoPrice)))
	require.Equal(t, http.StatusUnprocessableEntity, statusOf(model.ErrOverflow))
	require.Equal(t, http.StatusConflict, statusOf(model.ErrInsufficientSupply))
	require.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}

func TestGovernance(t *testing.T) {
	c := newClient(t)
	code, _ := c.do("POST", "/governance/appoint", "gov", map[string]string{"successor": "next"})
	require.Equal(t, http.StatusAccepted, code)

	_, gov := c.do("GET", "/governance", "", nil)
	require.Equal(t, "next", gov["successor"])

	code, _ = c.do("POST", "/governance/accept", "next", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do("POST", "/governance/fee", "next", map[string]int{"fee": 100})
	require.Equal(t, http.StatusOK, code)

	_, gov = c.do("GET", "/governance", "", nil)
	require.Equal(t, "next", gov["governance"])
	require.Equal(t, float64(100), gov["fee"])
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	code, body := c.do("GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
}
