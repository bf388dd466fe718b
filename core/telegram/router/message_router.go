package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/leadbot/core/telegram"
	"github.com/m3rciful/leadbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions wires the handlers for free text and shared contacts.
type MessageOptions struct {
	OnText    tele.HandlerFunc
	OnContact tele.HandlerFunc
}

// MessageRoutes builds handlers for text and contact messages.
// Text that names a registered command alias is dispatched to that command.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if reg != nil && strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(strings.Fields(text)[0]); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if opts.OnText != nil {
			return handleWithSummary(c, "text", start, func() error {
				return opts.OnText(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		logSkipped(c, "text", start, "no_handler")
		return nil
	}

	contactHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.OnContact == nil {
			logSkipped(c, "contact", start, "no_handler")
			return nil
		}
		return handleWithSummary(c, "contact", start, func() error {
			return opts.OnContact(c)
		})
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnContact,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(contactHandler)),
		},
	}
}
