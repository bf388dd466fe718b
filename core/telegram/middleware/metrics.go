package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "send_counters"

// sendCounters is shared between the handler and the sender workers that
// complete its queued sends, hence the atomics.
type sendCounters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

// countingContext counts successful sends of the wrapped context.
// Sends queued through the async dispatcher are counted when they complete.
type countingContext struct {
	tele.Context
	n *sendCounters
}

func (m countingContext) note(opts []interface{}) {
	m.n.messages.Add(1)
	if hasKeyboard(opts) {
		m.n.keyboard.Store(true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send.
func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.note(opts)
	}
	return err
}

// Reply proxies tele.Context.Reply.
func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.note(opts)
	}
	return err
}

// MessageMetricsMiddleware counts the messages a handler sends and whether any carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &sendCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the messages sent so far for the update and the keyboard flag.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*sendCounters)
	if !ok || n == nil {
		return 0, false
	}
	return int(n.messages.Load()), n.keyboard.Load()
}
