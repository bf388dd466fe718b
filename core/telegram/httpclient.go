package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/leadbot/core/telegram/netutil"
)

const (
	telegramClientTimeout = 30 * time.Second
	telegramRetryAttempts = 3
	telegramRetryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Long polling needs the client timeout above the poll timeout, so it is kept at 30s.
func BuildHTTPClient() *http.Client {
	return netutil.NewClient(netutil.ClientOptions{
		Timeout:               telegramClientTimeout,
		ResponseHeaderTimeout: telegramClientTimeout,
		RetryAttempts:         telegramRetryAttempts,
		RetryBackoff:          telegramRetryBackoff,
	})
}
