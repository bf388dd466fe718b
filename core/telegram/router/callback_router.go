package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/leadbot/core/telegram"
	"github.com/m3rciful/leadbot/core/telegram/callbacks"
	"github.com/m3rciful/leadbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a route that dispatches callbacks through the registry.
// The callback is acknowledged once the handler has finished, whatever it returned.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(callbackHandler(reg, opts))),
	}
}

func callbackHandler(reg *tg.Registry, opts CallbackOptions) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		defer func() { _ = c.Respond() }()

		key, _ := callbacks.ParseCallbackData(cb)
		cbHandler, ok := reg.GetCallback(key)
		name := "callback." + normalizeHandlerName(routeName(reg, key))
		extras := []slog.Attr{slog.String("cb_key", key)}

		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, func() error {
			return cbHandler(c)
		}, extras...)
	}
}

// routeName collapses prefix-routed keys so handler names stay low-cardinality.
func routeName(reg *tg.Registry, key string) string {
	for _, k := range reg.ListCallbacks() {
		if k == key {
			return key
		}
		if n := len(k) - 1; n > 0 && k[n] == '*' && len(key) >= n && key[:n] == k[:n] {
			return k[:n]
		}
	}
	return key
}
