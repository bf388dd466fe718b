package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/leadbot/core/telegram"
	"github.com/m3rciful/leadbot/core/telegram/commands"
)

type fakeContext struct {
	tele.Context
	upd   tele.Update
	mu    sync.Mutex
	store map[string]interface{}
	trail []string
}

func newCallbackContext(data string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 10, Callback: &tele.Callback{
			Data:   data,
			Sender: &tele.User{ID: 3},
		}},
		store: map[string]interface{}{},
	}
}

func newTextContext(text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 11, Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 3},
			Chat:   &tele.Chat{ID: 3},
		}},
		store: map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Sender() *tele.User {
	if f.upd.Callback != nil {
		return f.upd.Callback.Sender
	}
	return f.upd.Message.Sender
}
func (f *fakeContext) Chat() *tele.Chat {
	if f.upd.Message != nil {
		return f.upd.Message.Chat
	}
	return nil
}
func (f *fakeContext) Text() string {
	if f.upd.Message != nil {
		return f.upd.Message.Text
	}
	return ""
}
func (f *fakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}
func (f *fakeContext) Set(key string, val interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = val
}
func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.trail = append(f.trail, "respond")
	return nil
}

func TestCallbackRouteAcknowledgesAfterHandler(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallbackPrefix("quiz_a_", func(c tele.Context) error {
		c.(*fakeContext).trail = append(c.(*fakeContext).trail, "handle:"+c.Callback().Data)
		return nil
	}))
	route := CallbackRoute(reg, CallbackOptions{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	c := newCallbackContext("quiz_a_1_2")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, []string{"handle:quiz_a_1_2", "respond"}, c.trail)
}

func TestCallbackRouteAcknowledgesOnErrorAndUnknown(t *testing.T) {
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.RegisterCallback("start_quiz", func(tele.Context) error { return boom }))

	var notFound int
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error { notFound++; return nil }})

	c := newCallbackContext("start_quiz")
	assert.ErrorIs(t, route.Handler(c), boom)
	assert.Equal(t, []string{"respond"}, c.trail)

	c = newCallbackContext("garbage")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, notFound)
	assert.Equal(t, []string{"respond"}, c.trail)
}

func TestCallbackRouteAcknowledgesOnPanic(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("start_quiz", func(tele.Context) error { panic("bad") }))
	route := CallbackRoute(reg, CallbackOptions{})

	c := newCallbackContext("start_quiz")
	assert.Error(t, route.Handler(c))
	assert.Equal(t, []string{"respond"}, c.trail)
}

func TestRouteName(t *testing.T) {
	reg := tg.NewRegistry()
	h := func(tele.Context) error { return nil }
	require.NoError(t, reg.RegisterCallback("start_quiz", h))
	require.NoError(t, reg.RegisterCallbackPrefix("quiz_a_", h))

	assert.Equal(t, "start_quiz", routeName(reg, "start_quiz"))
	assert.Equal(t, "quiz_a_", routeName(reg, "quiz_a_3_1"))
	assert.Equal(t, "other", routeName(reg, "other"))
}

func TestMessageRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	var cmdHits, textHits, contactHits int
	reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { cmdHits++; return nil },
		Description: "start",
		Aliases:     []string{"restart"},
	})

	routes := MessageRoutes(reg, MessageOptions{
		OnText:    func(tele.Context) error { textHits++; return nil },
		OnContact: func(tele.Context) error { contactHits++; return nil },
	})
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)
	assert.Equal(t, tele.OnContact, routes[1].Endpoint)

	require.NoError(t, routes[0].Handler(newTextContext("/restart now")))
	require.NoError(t, routes[0].Handler(newTextContext("Иван")))
	require.NoError(t, routes[1].Handler(newTextContext("")))

	assert.Equal(t, 1, cmdHits)
	assert.Equal(t, 1, textHits)
	assert.Equal(t, 1, contactHits)
}

func TestCommandRoutesAdminGate(t *testing.T) {
	reg := tg.NewRegistry()
	var hits, rejected int
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     func(tele.Context) error { hits++; return nil },
		Description: "stats",
		AdminOnly:   true,
		Hidden:      true,
	})

	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       3,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 1)
	assert.Equal(t, "/stats", routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(newTextContext("/stats")))
	assert.Equal(t, 1, hits)

	other := newTextContext("/stats")
	other.upd.Message.Sender = &tele.User{ID: 4}
	require.NoError(t, routes[0].Handler(other))
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, rejected)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "start", normalizeHandlerName("/Start"))
	assert.Equal(t, "a_b", normalizeHandlerName("a b"))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "TG_403", errorCode(fmt.Errorf("send: %w", &tele.Error{Code: 403, Description: "blocked"})))
	assert.Equal(t, "TIMEOUT", errorCode(fmt.Errorf("x: %w", context.DeadlineExceeded)))
	assert.Equal(t, "CANCELED", errorCode(context.Canceled))
	assert.Equal(t, "CODEDERR", errorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}
