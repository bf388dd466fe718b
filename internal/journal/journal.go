// Package journal keeps an audit trail of intake submissions.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/leadbot/core/logger"
	"github.com/m3rciful/leadbot/internal/intake"
)

// Entry describes one intake attempt.
type Entry struct {
	UserID      int64
	Lead        intake.Lead
	QuizAnswers []string
	Result      intake.Result
}

// Stats counts recorded submissions per outcome.
type Stats struct {
	Total     int
	ByOutcome map[string]int
}

type row struct {
	ID          string    `db:"id"`
	UserID      int64     `db:"user_id"`
	Name        string    `db:"name"`
	Surname     string    `db:"surname"`
	Phone       string    `db:"phone"`
	Email       string    `db:"email"`
	QuizAnswers string    `db:"quiz_answers"`
	Outcome     string    `db:"outcome"`
	HTTPStatus  int       `db:"http_status"`
	Error       string    `db:"error"`
	CreatedAt   time.Time `db:"created_at"`
}

// Journal writes entries to the leads table.
type Journal struct {
	db  *sqlx.DB
	now func() time.Time
}

// New returns a Journal over db. The leads table must exist.
func New(db *sqlx.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

const insertLead = `INSERT INTO leads
	(id, user_id, name, surname, phone, email, quiz_answers, outcome, http_status, error, created_at)
VALUES
	(:id, :user_id, :name, :surname, :phone, :email, :quiz_answers, :outcome, :http_status, :error, :created_at)`

// Record stores e and returns the generated lead id.
func (j *Journal) Record(ctx context.Context, e Entry) (string, error) {
	answers := e.QuizAnswers
	if answers == nil {
		answers = []string{}
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("journal: encode answers: %w", err)
	}

	r := row{
		ID:          uuid.NewString(),
		UserID:      e.UserID,
		Name:        e.Lead.Name,
		Surname:     e.Lead.Surname,
		Phone:       e.Lead.Phone,
		Email:       e.Lead.Email,
		QuizAnswers: string(rawAnswers),
		Outcome:     e.Result.Outcome.String(),
		HTTPStatus:  e.Result.Status,
		CreatedAt:   j.now().UTC(),
	}
	if e.Result.Err != nil {
		r.Error = logger.SanitizeLimit(e.Result.Err.Error(), 512)
	}

	start := time.Now()
	if _, err := j.db.NamedExecContext(ctx, insertLead, r); err != nil {
		return "", fmt.Errorf("journal: insert lead: %w", err)
	}
	logger.Debug(logger.WithLeadID(ctx, r.ID), logger.CompJournal, "journal.insert",
		slog.String("status", "ok"),
		slog.String("outcome", r.Outcome),
		slog.Duration("duration", time.Since(start)),
	)
	return r.ID, nil
}

// Stats returns submission counts per outcome.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		N       int    `db:"n"`
	}
	if err := j.db.SelectContext(ctx, &rows, `SELECT outcome, COUNT(*) AS n FROM leads GROUP BY outcome ORDER BY outcome`); err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	st := Stats{ByOutcome: make(map[string]int, len(rows))}
	for _, r := range rows {
		st.ByOutcome[r.Outcome] = r.N
		st.Total += r.N
	}
	return st, nil
}

// AnswersOf returns the quiz answers stored for lead id.
func (j *Journal) AnswersOf(ctx context.Context, id string) ([]string, error) {
	var raw string
	if err := j.db.GetContext(ctx, &raw, j.db.Rebind(`SELECT quiz_answers FROM leads WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("journal: load answers: %w", err)
	}
	var answers []string
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf("journal: decode answers: %w", err)
	}
	return answers, nil
}
