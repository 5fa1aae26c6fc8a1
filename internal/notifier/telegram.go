package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	defaultAPI = "https://api.telegram.org"
	// maxMessageLen is the Bot API limit on message text.
	maxMessageLen = 4096
)

// APIError is a failed Bot API call.
type APIError struct {
	Status      int
	Description string
	// RetryAfter is set when the API asks the client to back off (HTTP 429).
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API error: status %d", e.Status)
	}
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

// retryable reports whether resending the same message can succeed.
func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// TelegramNotifier posts ledger messages to one chat and takes commands
// from it.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	Log      *logrus.Entry
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log *logrus.Entry) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			log.WithError(err).Warn("ignoring invalid proxy url")
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultAPI,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Log: log,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
}

// Send posts text to the configured chat, split into as many messages as
// the API limit requires.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, part := range split(text, maxMessageLen) {
		if err := t.post(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

// SendWithRetry sends like Send, retrying each part with exponential
// backoff. A 429 waits for the interval the API asked for; a rejected
// message (4xx) is not retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	for _, part := range split(text, maxMessageLen) {
		if err := t.postWithRetry(ctx, part, maxRetries); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) postWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.post(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err

		backoff := time.Duration(1<<uint(i)) * time.Second
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.retryable() {
				return err
			}
			if apiErr.RetryAfter > 0 {
				backoff = apiErr.RetryAfter
			}
		}
		t.Log.WithError(err).WithFields(logrus.Fields{
			"attempt": i + 1, "max": maxRetries + 1, "backoff": backoff,
		}).Warn("telegram send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

func (t *TelegramNotifier) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Description = payload.Description
		apiErr.RetryAfter = time.Duration(payload.Parameters.RetryAfter) * time.Second
	} else {
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// split breaks text into chunks of at most limit runes, preferring line
// boundaries so that per-line HTML markup stays intact.
func split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			head := []rune(line)[:limit]
			parts = append(parts, string(head))
			line = string([]rune(line)[limit:])
			ln -= limit
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return parts
}
