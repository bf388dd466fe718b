// Package app wires the lead conversation into the Telegram runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/leadbot/core/config"
	"github.com/m3rciful/leadbot/core/logger"
	coretelegram "github.com/m3rciful/leadbot/core/telegram"
	"github.com/m3rciful/leadbot/core/telegram/callbacks"
	"github.com/m3rciful/leadbot/core/telegram/commands"
	"github.com/m3rciful/leadbot/core/telegram/format"
	tghelpers "github.com/m3rciful/leadbot/core/telegram/helpers"
	"github.com/m3rciful/leadbot/core/telegram/router"
	"github.com/m3rciful/leadbot/core/telegram/state"
	"github.com/m3rciful/leadbot/internal/intake"
	"github.com/m3rciful/leadbot/internal/journal"
	"github.com/m3rciful/leadbot/internal/leadflow"
	"github.com/m3rciful/leadbot/internal/quiz"

	tele "gopkg.in/telebot.v4"
)

// StatsSource reports recorded submissions per outcome.
type StatsSource interface {
	Stats(ctx context.Context) (journal.Stats, error)
}

// Options configures New. DB is nil when the journal is disabled.
type Options struct {
	Config *coreconfig.Config
	DB     *sqlx.DB

	// Intake overrides the HTTP intake client, mainly for tests.
	Intake leadflow.Submitter
}

// App owns the session store and the conversation controller.
type App struct {
	cfg   *coreconfig.Config
	store *state.MemoryStore
	flow  *leadflow.Controller
	stats StatsSource
	reg   *coretelegram.Registry
}

// New builds the application graph.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	store := state.NewMemoryStore(state.Options{
		TTL:             cfg.SessionTTL(),
		CleanupInterval: cfg.SessionCleanupInterval(),
	})

	submitter := opts.Intake
	if submitter == nil {
		submitter = intake.NewClient(cfg.Intake, cfg.IntakeTimeout())
	}

	a := &App{cfg: cfg, store: store}
	flowOpts := leadflow.Options{
		Store:      store,
		Quiz:       quiz.Default(),
		Intake:     submitter,
		PitchPhoto: cfg.Pitch.PhotoPath,
	}
	if opts.DB != nil {
		j := journal.New(opts.DB)
		flowOpts.Journal = j
		a.stats = j
	}
	a.flow = leadflow.New(flowOpts)
	a.reg = a.buildRegistry()

	logger.Info(context.Background(), logger.CompFlow, "app.init",
		slog.String("status", "ok"),
		slog.Bool("journal", a.stats != nil),
		slog.Duration("session_ttl", cfg.SessionTTL()),
		slog.Duration("intake_timeout", cfg.IntakeTimeout()),
	)
	return a, nil
}

// Close stops the session sweep.
func (a *App) Close() {
	a.store.Close()
}

// Registry exposes the commands and callbacks of the bot.
func (a *App) Registry() *coretelegram.Registry {
	return a.reg
}

func (a *App) buildRegistry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.onStart,
		Description: "Начать",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.onStats,
		Description: "Lead statistics",
		AdminOnly:   true,
		Hidden:      true,
	})
	_ = reg.RegisterCallback(quiz.ActionStartQuiz, a.onCallback)
	_ = reg.RegisterCallbackPrefix(quiz.AnswerPrefix, a.onCallback)
	reg.SetCallbackNotFound(a.onUnknownCallback)
	return reg
}

// TelegramRunOptions assembles middlewares and routes for RunTelegram.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.reg, router.MessageOptions{
		OnText:    a.onText,
		OnContact: a.onContact,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    a.reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.Close()
			return nil
		},
	}, nil
}

func (a *App) dispatch(c tele.Context, ev leadflow.Event) error {
	ctx := tghelpers.BuildContext(c)
	return a.flow.Handle(ctx, tghelpers.SenderID(c), ev, tghelpers.NewReplier(c))
}

func (a *App) onStart(c tele.Context) error {
	return a.dispatch(c, leadflow.StartCommand{})
}

func (a *App) onCallback(c tele.Context) error {
	key := callbacks.CallbackKey(c)
	ev, err := leadflow.CallbackEvent(key)
	if err != nil {
		logger.Warn(tghelpers.BuildContext(c), logger.CompFlow, "callback.decode",
			slog.String("status", "skip"),
			slog.String("reason", "malformed"),
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
		)
		return nil
	}
	return a.dispatch(c, ev)
}

// onUnknownCallback swallows presses of buttons this bot never sent.
func (a *App) onUnknownCallback(c tele.Context) error {
	logger.Debug(tghelpers.BuildContext(c), logger.CompFlow, "callback.unknown",
		slog.String("status", "skip"),
		slog.String("cb_key", logger.SanitizeLimit(callbacks.CallbackKey(c), 64)),
	)
	return nil
}

func (a *App) onText(c tele.Context) error {
	return a.dispatch(c, leadflow.TextMessage{Text: c.Text()})
}

func (a *App) onContact(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Contact == nil {
		return nil
	}
	return a.dispatch(c, leadflow.ContactShared{Phone: msg.Contact.PhoneNumber})
}

func (a *App) onStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	lines := []string{
		format.Bold("Leads"),
		fmt.Sprintf("Active sessions: %d", a.flow.Sessions()),
	}
	if a.stats == nil {
		lines = append(lines, "Journal: disabled")
		return tghelpers.SendHTML(c, format.Lines(lines...))
	}

	st, err := a.stats.Stats(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompJournal, "journal.stats",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		lines = append(lines, "Journal: unavailable")
		return tghelpers.SendHTML(c, format.Lines(lines...))
	}

	lines = append(lines, fmt.Sprintf("Submitted: %d", st.Total))
	outcomes := make([]string, 0, len(st.ByOutcome))
	for o := range st.ByOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		lines = append(lines, fmt.Sprintf("  %s: %d", format.EscapeHTML(o), st.ByOutcome[o]))
	}
	return tghelpers.SendHTML(c, format.Lines(lines...))
}
