// Package leadflow runs the per-user conversation: pitch, quiz, contact form
// and the final submission of the lead.
package leadflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/m3rciful/leadbot/core/logger"
	"github.com/m3rciful/leadbot/core/telegram/format"
	"github.com/m3rciful/leadbot/core/telegram/keyboard"
	"github.com/m3rciful/leadbot/core/telegram/state"
	"github.com/m3rciful/leadbot/internal/intake"
	"github.com/m3rciful/leadbot/internal/journal"
	"github.com/m3rciful/leadbot/internal/quiz"

	tele "gopkg.in/telebot.v4"
)

// Replier delivers outbound messages to the user's chat. tele.Context satisfies it.
type Replier interface {
	Send(what any, opts ...any) error
}

// Submitter posts a finished lead.
type Submitter interface {
	Submit(ctx context.Context, lead intake.Lead) intake.Result
}

// Recorder stores the outcome of a submission.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (string, error)
}

// Options configures a Controller. Journal may be nil.
type Options struct {
	Store      state.Store
	Quiz       quiz.Quiz
	Intake     Submitter
	Journal    Recorder
	PitchPhoto string
}

// Controller owns every transition of the conversation.
type Controller struct {
	store   state.Store
	quiz    quiz.Quiz
	intake  Submitter
	journal Recorder
	photo   string
}

// New returns a Controller. A nil Quiz falls back to quiz.Default.
func New(opts Options) *Controller {
	q := opts.Quiz
	if q == nil {
		q = quiz.Default()
	}
	return &Controller{
		store:   opts.Store,
		quiz:    q,
		intake:  opts.Intake,
		journal: opts.Journal,
		photo:   opts.PitchPhoto,
	}
}

// Sessions returns the number of sessions in progress.
func (c *Controller) Sessions() int {
	return c.store.Len()
}

// Handle applies ev for userID. Events of one user are processed one at a time.
func (c *Controller) Handle(ctx context.Context, userID int64, ev Event, r Replier) error {
	unlock := c.store.Lock(userID)
	defer unlock()

	switch e := ev.(type) {
	case StartCommand:
		return c.pitch(ctx, r)
	case StartQuiz:
		return c.startQuiz(ctx, userID, r)
	case QuizAnswer:
		return c.answer(ctx, userID, e.Answer, r)
	case TextMessage:
		return c.text(ctx, userID, e.Text, r)
	case ContactShared:
		return c.contact(ctx, userID, e.Phone, r)
	case nil:
		return errors.New("leadflow: nil event")
	default:
		return fmt.Errorf("leadflow: unsupported event %T", ev)
	}
}

func (c *Controller) pitch(ctx context.Context, r Replier) error {
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{{Text: pitchButton, Data: quiz.ActionStartQuiz}})
	if _, err := os.Stat(c.photo); err != nil {
		logger.Warn(ctx, logger.CompFlow, "pitch.photo",
			slog.String("status", "skip"),
			slog.String("path", c.photo),
			slog.String("err", err.Error()),
		)
		return send(r, "pitch", pitchCaption, markup)
	}
	photo := &tele.Photo{File: tele.FromDisk(c.photo), Caption: pitchCaption}
	return send(r, "pitch", photo, markup)
}

func (c *Controller) startQuiz(ctx context.Context, userID int64, r Replier) error {
	c.store.Create(userID)
	logger.Info(ctx, logger.CompFlow, "quiz.start", slog.String("status", "ok"))
	return c.sendQuestion(r, 0)
}

func (c *Controller) sendQuestion(r Replier, i int) error {
	q, err := c.quiz.Question(i)
	if err != nil {
		return err
	}
	buttons := make([]keyboard.InlineBtn, len(q.Options))
	for o, text := range q.Options {
		buttons[o] = keyboard.InlineBtn{Text: text, Data: quiz.EncodeAnswer(i, o)}
	}
	return send(r, "question", q.Text, keyboard.InlineButtons(buttons))
}

func (c *Controller) answer(ctx context.Context, userID int64, a quiz.Answer, r Replier) error {
	attrs := []slog.Attr{slog.Int("question", a.Question), slog.Int("option", a.Option)}
	sess, ok := c.store.Get(userID)
	if !ok {
		logger.Debug(ctx, logger.CompFlow, "quiz.answer", append(attrs, slog.String("status", "skip"), slog.String("reason", "no_session"))...)
		return nil
	}
	if sess.InForm() {
		logger.Debug(ctx, logger.CompFlow, "quiz.answer", append(attrs, slog.String("status", "skip"), slog.String("reason", "form_started"))...)
		return nil
	}
	if a.Question != len(sess.QuizAnswers) {
		logger.Debug(ctx, logger.CompFlow, "quiz.answer", append(attrs,
			slog.String("status", "skip"),
			slog.String("reason", "stale"),
			slog.Int("answers", len(sess.QuizAnswers)),
		)...)
		return nil
	}
	text, err := c.quiz.Resolve(a)
	if err != nil {
		logger.Warn(ctx, logger.CompFlow, "quiz.answer", append(attrs,
			slog.String("status", "skip"),
			slog.String("reason", "out_of_range"),
		)...)
		return nil
	}

	sess.QuizAnswers = append(sess.QuizAnswers, text)
	logger.Info(ctx, logger.CompFlow, "quiz.answer", append(attrs,
		slog.String("status", "ok"),
		slog.Int("answers", len(sess.QuizAnswers)),
	)...)

	if err := send(r, "answer", fmt.Sprintf(answerSavedFmt, format.Bold(text)), &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return err
	}
	if !c.quiz.IsLast(a.Question) {
		return c.sendQuestion(r, a.Question+1)
	}

	if err := sess.Advance(state.StepName); err != nil {
		return fmt.Errorf("leadflow: %w", err)
	}
	logger.Info(ctx, logger.CompFlow, "quiz.done",
		slog.String("status", "ok"),
		slog.String("step", sess.Step.String()),
	)
	if err := send(r, "form.intro", formIntro); err != nil {
		return err
	}
	return send(r, "prompt.name", promptName)
}

func (c *Controller) text(ctx context.Context, userID int64, raw string, r Replier) error {
	sess, ok := c.store.Get(userID)
	if !ok || !sess.InForm() {
		logger.Debug(ctx, logger.CompFlow, "form.text",
			slog.String("status", "skip"),
			slog.String("reason", "no_step"),
		)
		return nil
	}
	input := strings.TrimSpace(raw)

	switch sess.Step {
	case state.StepName:
		sess.Name = input
		return c.advance(ctx, sess, state.StepSurname, r, promptSurname)
	case state.StepSurname:
		sess.Surname = input
		return c.advance(ctx, sess, state.StepPhone, r, promptPhone, keyboard.ContactRequest(contactButton))
	case state.StepPhone:
		sess.Phone = input
		return c.advance(ctx, sess, state.StepEmail, r, promptEmail, keyboard.RemoveKeyboard())
	case state.StepEmail:
		if !ValidEmail(input) {
			logger.Info(ctx, logger.CompFlow, "form.email",
				slog.String("status", "retry"),
				slog.String("reason", "invalid_email"),
			)
			return send(r, "prompt.email.retry", retryEmail)
		}
		sess.Email = input
		return c.submit(ctx, userID, sess, r)
	}
	return fmt.Errorf("leadflow: unexpected step %s", sess.Step)
}

func (c *Controller) contact(ctx context.Context, userID int64, phone string, r Replier) error {
	sess, ok := c.store.Get(userID)
	if !ok {
		logger.Debug(ctx, logger.CompFlow, "form.contact",
			slog.String("status", "skip"),
			slog.String("reason", "no_session"),
		)
		return nil
	}
	sess.Phone = strings.TrimSpace(phone)
	return c.advance(ctx, sess, state.StepEmail, r, promptEmail, keyboard.RemoveKeyboard())
}

func (c *Controller) advance(ctx context.Context, sess *state.Session, to state.Step, r Replier, prompt string, opts ...any) error {
	from := sess.Step
	if err := sess.Advance(to); err != nil {
		logger.Warn(ctx, logger.CompFlow, "form.step",
			slog.String("status", "fail"),
			slog.String("step", from.String()),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("leadflow: %w", err)
	}
	logger.Debug(ctx, logger.CompFlow, "form.step",
		slog.String("status", "ok"),
		slog.String("step", to.String()),
		slog.String("from", from.String()),
	)
	return send(r, "prompt."+to.String(), prompt, opts...)
}

// submit posts the lead once, reports the outcome and always ends the session.
func (c *Controller) submit(ctx context.Context, userID int64, sess *state.Session, r Replier) error {
	defer c.store.Delete(userID)

	lead := intake.Lead{
		Name:    sess.Name,
		Surname: sess.Surname,
		Phone:   sess.Phone,
		Email:   sess.Email,
	}
	res := c.intake.Submit(ctx, lead)

	if c.journal != nil {
		id, err := c.journal.Record(ctx, journal.Entry{
			UserID:      userID,
			Lead:        lead,
			QuizAnswers: append([]string(nil), sess.QuizAnswers...),
			Result:      res,
		})
		if err != nil {
			logger.Error(ctx, logger.CompJournal, "journal.insert",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		} else {
			ctx = logger.WithLeadID(ctx, id)
		}
	}

	logger.Info(ctx, logger.CompFlow, "lead.submit",
		slog.String("status", "ok"),
		slog.String("outcome", res.Outcome.String()),
		slog.Int("answers", len(sess.QuizAnswers)),
	)
	return send(r, "outcome", renderOutcome(res), keyboard.RemoveKeyboard())
}

// renderOutcome is the only place a submission result becomes user-facing text.
func renderOutcome(res intake.Result) string {
	switch res.Outcome {
	case intake.OutcomeAccepted:
		return outcomeAccepted
	case intake.OutcomeRejected:
		return fmt.Sprintf(outcomeRejected, res.Status)
	case intake.OutcomeTransportFailure:
		return fmt.Sprintf(outcomeTransport, res.Err)
	}
	return fmt.Sprintf(outcomeTransport, fmt.Errorf("unknown outcome %d", int(res.Outcome)))
}

// ValidEmail is the only check applied to the email field: it must contain "@" and ".".
func ValidEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

func send(r Replier, what string, msg any, opts ...any) error {
	if err := r.Send(msg, opts...); err != nil {
		return fmt.Errorf("leadflow: send %s: %w", what, err)
	}
	return nil
}
