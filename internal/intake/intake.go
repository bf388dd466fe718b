// Package intake submits completed leads to the external intake endpoint.
package intake

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/leadbot/core/config"
	"github.com/m3rciful/leadbot/core/logger"
	"github.com/m3rciful/leadbot/core/telegram/netutil"
)

// TokenHeader carries the integrity token of the payload.
const TokenHeader = "x-service-token"

// Lead is the contact data collected by the form.
type Lead struct {
	Name    string
	Surname string
	Phone   string
	Email   string
}

// Payload is the JSON body accepted by the intake endpoint.
type Payload struct {
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Affiliate string `json:"affiliate"`
	Country   string `json:"country"`
	Landing   string `json:"landing"`
	Language  string `json:"language"`
	IP        string `json:"ip"`
	URL       string `json:"url"`
}

// Token returns hex(sha256(name+surname+email+phone+ip)).
func Token(p Payload) string {
	sum := sha256.Sum256([]byte(p.Name + p.Surname + p.Email + p.Phone + p.IP))
	return hex.EncodeToString(sum[:])
}

// Outcome classifies a submission attempt.
type Outcome int

const (
	// OutcomeAccepted means the endpoint answered 200 or 201.
	OutcomeAccepted Outcome = iota + 1
	// OutcomeRejected means the endpoint answered with any other status.
	OutcomeRejected
	// OutcomeTransportFailure means no response was received.
	OutcomeTransportFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailure:
		return "transport"
	}
	return "unknown"
}

// Result is the typed result of Submit. Status is set for accepted and
// rejected submissions, Err for transport failures.
type Result struct {
	Outcome Outcome
	Status  int
	Err     error
	Took    time.Duration
}

// Doer is the part of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts leads to the intake endpoint. It makes exactly one attempt per lead.
type Client struct {
	cfg  coreconfig.IntakeConfig
	http Doer
}

// NewClient builds a client with retries disabled and the given deadline.
func NewClient(cfg coreconfig.IntakeConfig, timeout time.Duration) *Client {
	return NewClientWithDoer(cfg, netutil.NewClient(netutil.ClientOptions{
		Timeout:               timeout,
		ResponseHeaderTimeout: timeout,
	}))
}

// NewClientWithDoer is NewClient with a caller-supplied HTTP client.
func NewClientWithDoer(cfg coreconfig.IntakeConfig, doer Doer) *Client {
	return &Client{cfg: cfg, http: doer}
}

// BuildPayload fills the fixed campaign fields around lead.
func (c *Client) BuildPayload(lead Lead) Payload {
	return Payload{
		Name:      lead.Name,
		Surname:   lead.Surname,
		Phone:     lead.Phone,
		Email:     lead.Email,
		Affiliate: c.cfg.Affiliate,
		Country:   c.cfg.Country,
		Landing:   c.cfg.Landing,
		Language:  c.cfg.Language,
		IP:        c.cfg.IP,
		URL:       c.cfg.Source,
	}
}

// Submit posts lead once and classifies the response.
func (c *Client) Submit(ctx context.Context, lead Lead) Result {
	start := time.Now()
	res := c.submit(ctx, c.BuildPayload(lead))
	res.Took = time.Since(start)

	attrs := []slog.Attr{
		slog.String("outcome", res.Outcome.String()),
		slog.Duration("duration", res.Took),
	}
	if res.Status != 0 {
		attrs = append(attrs, slog.Int("http_status", res.Status))
	}
	switch res.Outcome {
	case OutcomeAccepted:
		logger.Info(ctx, logger.CompIntake, "intake.submit", append(attrs, slog.String("status", "ok"))...)
	case OutcomeRejected:
		logger.Warn(ctx, logger.CompIntake, "intake.submit", append(attrs, slog.String("status", "fail"))...)
	default:
		attrs = append(attrs,
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(res.Err.Error(), 256)),
			slog.String("error_kind", netutil.ClassifyError(res.Err)),
		)
		logger.Error(ctx, logger.CompIntake, "intake.submit", attrs...)
	}
	return res
}

func (c *Client) submit(ctx context.Context, p Payload) Result {
	body, err := json.Marshal(p)
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("intake: encode payload: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, Err: fmt.Errorf("intake: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, Token(p))
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return Result{Outcome: OutcomeAccepted, Status: resp.StatusCode}
	}
	return Result{Outcome: OutcomeRejected, Status: resp.StatusCode}
}
