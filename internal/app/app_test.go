package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/leadbot/core/config"
	coretelegram "github.com/m3rciful/leadbot/core/telegram"
	"github.com/m3rciful/leadbot/internal/intake"
	"github.com/m3rciful/leadbot/internal/journal"
	"github.com/m3rciful/leadbot/internal/quiz"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeContext struct {
	tele.Context
	upd   tele.Update
	mu    sync.Mutex
	store map[string]interface{}
	sent  []interface{}
}

func newMessageContext(userID int64, msg *tele.Message) *fakeContext {
	msg.Sender = &tele.User{ID: userID}
	msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	return &fakeContext{upd: tele.Update{ID: 1, Message: msg}, store: map[string]interface{}{}}
}

func newCallbackContext(userID int64, data string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 2, Callback: &tele.Callback{
			Data:    data,
			Sender:  &tele.User{ID: userID},
			Message: &tele.Message{Chat: &tele.Chat{ID: userID}},
		}},
		store: map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Message() *tele.Message {
	if f.upd.Callback != nil {
		return f.upd.Callback.Message
	}
	return f.upd.Message
}
func (f *fakeContext) Sender() *tele.User {
	if f.upd.Callback != nil {
		return f.upd.Callback.Sender
	}
	return f.upd.Message.Sender
}
func (f *fakeContext) Chat() *tele.Chat {
	if m := f.Message(); m != nil {
		return m.Chat
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
func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, what)
	return nil
}
func (f *fakeContext) Respond(...*tele.CallbackResponse) error { return nil }

func (f *fakeContext) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if str, ok := s.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

type stubSubmitter struct{ leads []intake.Lead }

func (s *stubSubmitter) Submit(_ context.Context, lead intake.Lead) intake.Result {
	s.leads = append(s.leads, lead)
	return intake.Result{Outcome: intake.OutcomeAccepted, Status: 200}
}

type stubStats struct {
	st  journal.Stats
	err error
}

func (s stubStats) Stats(context.Context) (journal.Stats, error) { return s.st, s.err }

func testConfig() *coreconfig.Config {
	return &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "t", AdminID: 99, RunMode: coreconfig.RunModeLongpoll},
		Intake:   coreconfig.IntakeConfig{URL: "http://127.0.0.1:1/leads"},
		Pitch:    coreconfig.PitchConfig{PhotoPath: "does-not-exist.jpg"},
	}
}

func newTestApp(t *testing.T) (*App, *stubSubmitter) {
	t.Helper()
	sub := &stubSubmitter{}
	a, err := New(Options{Config: testConfig(), Intake: sub})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, sub
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRegistryWiring(t *testing.T) {
	a, _ := newTestApp(t)
	reg := a.Registry()

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "/start", visible[0].Text)

	_, stats, ok := reg.LookupCommand("/stats")
	require.True(t, ok)
	assert.True(t, stats.AdminOnly)

	_, ok = reg.GetCallback(quiz.ActionStartQuiz)
	assert.True(t, ok)
	_, ok = reg.GetCallback("quiz_a_3_1")
	assert.True(t, ok)
	_, ok = reg.GetCallback("something_else")
	assert.False(t, ok)
}

func TestTelegramRunOptions(t *testing.T) {
	a, _ := newTestApp(t)
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, a.cfg, opts.Config)
	assert.Same(t, a.reg, opts.Registry)
	require.NotNil(t, opts.OnStop)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/stats", tele.OnCallback, tele.OnText, tele.OnContact} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names)

	require.NoError(t, opts.OnStop(context.Background(), coretelegram.Runtime{}))
}

func TestConversationThroughHandlers(t *testing.T) {
	a, sub := newTestApp(t)
	const user = int64(5)

	start := newMessageContext(user, &tele.Message{Text: "/start"})
	require.NoError(t, a.onStart(start))
	require.Len(t, start.sent, 1)

	cb := newCallbackContext(user, quiz.ActionStartQuiz)
	require.NoError(t, a.onCallback(cb))
	assert.Equal(t, []string{quiz.Default()[0].Text}, cb.texts())

	for q := 0; q < quiz.Default().Len(); q++ {
		require.NoError(t, a.onCallback(newCallbackContext(user, quiz.EncodeAnswer(q, 0))))
	}

	for _, in := range []string{"Иван", "Петров"} {
		require.NoError(t, a.onText(newMessageContext(user, &tele.Message{Text: in})))
	}
	contact := newMessageContext(user, &tele.Message{Contact: &tele.Contact{PhoneNumber: "+100", UserID: user}})
	require.NoError(t, a.onContact(contact))

	final := newMessageContext(user, &tele.Message{Text: "ivan@example.com"})
	require.NoError(t, a.onText(final))

	require.Len(t, sub.leads, 1)
	assert.Equal(t, intake.Lead{Name: "Иван", Surname: "Петров", Phone: "+100", Email: "ivan@example.com"}, sub.leads[0])
	assert.Equal(t, 0, a.flow.Sessions())
	assert.NotEmpty(t, final.texts())
}

func TestMalformedCallbackIsIgnored(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.onCallback(newCallbackContext(1, quiz.ActionStartQuiz)))

	c := newCallbackContext(1, "quiz_a_x_y")
	require.NoError(t, a.onCallback(c))
	assert.Empty(t, c.sent)

	c = newCallbackContext(1, "zzz")
	require.NoError(t, a.onUnknownCallback(c))
	assert.Empty(t, c.sent)
}

func TestContactWithoutPayload(t *testing.T) {
	a, _ := newTestApp(t)
	c := newMessageContext(1, &tele.Message{Text: "x"})
	require.NoError(t, a.onContact(c))
	assert.Empty(t, c.sent)
}

func TestStatsCommand(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.onCallback(newCallbackContext(1, quiz.ActionStartQuiz)))

	c := newMessageContext(99, &tele.Message{Text: "/stats"})
	require.NoError(t, a.onStats(c))
	require.Len(t, c.texts(), 1)
	assert.Contains(t, c.texts()[0], "Active sessions: 1")
	assert.Contains(t, c.texts()[0], "Journal: disabled")

	a.stats = stubStats{st: journal.Stats{Total: 3, ByOutcome: map[string]int{"accepted": 2, "rejected": 1}}}
	c = newMessageContext(99, &tele.Message{Text: "/stats"})
	require.NoError(t, a.onStats(c))
	out := c.texts()[0]
	assert.Contains(t, out, "Submitted: 3")
	assert.Contains(t, out, "accepted: 2")
	assert.Contains(t, out, "rejected: 1")

	a.stats = stubStats{err: errors.New("db down")}
	c = newMessageContext(99, &tele.Message{Text: "/stats"})
	require.NoError(t, a.onStats(c))
	assert.Contains(t, c.texts()[0], "Journal: unavailable")
}
