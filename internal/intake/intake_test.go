package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/leadbot/core/config"
)

func testConfig(url string) coreconfig.IntakeConfig {
	return coreconfig.IntakeConfig{
		URL:       url,
		UserAgent: "GPT-investBot/1.0",
		Affiliate: "dmitriy",
		Country:   "ru",
		Landing:   "ru",
		Language:  "ru",
		IP:        "0.0.0.0",
		Source:    "gpt-invest-bot",
	}
}

var ivan = Lead{Name: "Ivan", Surname: "Petrov", Phone: "+111222", Email: "ivan@x.io"}

func TestTokenMatchesConcatenationOrder(t *testing.T) {
	p := Payload{Name: "Ivan", Surname: "Petrov", Phone: "+111222", Email: "ivan@x.io", IP: "0.0.0.0"}
	sum := sha256.Sum256([]byte("IvanPetrovivan@x.io+1112220.0.0.0"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Token(p))
	assert.Len(t, Token(p), 64)
}

func TestTokenIsDeterministicAndSensitive(t *testing.T) {
	p := Payload{Name: "Ivan", Surname: "Petrov", Phone: "+111222", Email: "ivan@x.io", IP: "0.0.0.0"}
	assert.Equal(t, Token(p), Token(p))

	for _, mutate := range []func(*Payload){
		func(p *Payload) { p.Name = "Ivan " },
		func(p *Payload) { p.Surname = "Petrova" },
		func(p *Payload) { p.Phone = "+111223" },
		func(p *Payload) { p.Email = "ivan@y.io" },
		func(p *Payload) { p.IP = "127.0.0.1" },
	} {
		q := p
		mutate(&q)
		assert.NotEqual(t, Token(p), Token(q))
	}

	q := p
	q.Affiliate, q.URL = "other", "other"
	assert.Equal(t, Token(p), Token(q))
}

func TestSubmitSendsPayloadAndHeaders(t *testing.T) {
	var (
		gotBody    Payload
		gotHeaders http.Header
		gotMethod  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), 5*time.Second)
	res := c.Submit(context.Background(), ivan)

	assert.Equal(t, OutcomeAccepted, res.Outcome)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.NoError(t, res.Err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "GPT-investBot/1.0", gotHeaders.Get("User-Agent"))
	want := Payload{
		Name: "Ivan", Surname: "Petrov", Phone: "+111222", Email: "ivan@x.io",
		Affiliate: "dmitriy", Country: "ru", Landing: "ru", Language: "ru",
		IP: "0.0.0.0", URL: "gpt-invest-bot",
	}
	assert.Equal(t, want, gotBody)
	assert.Equal(t, Token(want), gotHeaders.Get(TokenHeader))
}

func TestSubmitPayloadKeys(t *testing.T) {
	raw, err := json.Marshal(Payload{})
	require.NoError(t, err)
	var keys map[string]any
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{"name", "surname", "phone", "email", "affiliate", "country", "landing", "language", "ip", "url"} {
		assert.Contains(t, keys, k)
	}
	assert.Len(t, keys, 10)
}

func TestSubmitClassifiesStatus(t *testing.T) {
	cases := []struct {
		status  int
		outcome Outcome
	}{
		{http.StatusOK, OutcomeAccepted},
		{http.StatusCreated, OutcomeAccepted},
		{http.StatusAccepted, OutcomeRejected},
		{http.StatusBadRequest, OutcomeRejected},
		{http.StatusInternalServerError, OutcomeRejected},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"x"}`))
		}))
		res := NewClient(testConfig(srv.URL), time.Second).Submit(context.Background(), ivan)
		srv.Close()

		assert.Equal(t, tc.outcome, res.Outcome, "status %d", tc.status)
		assert.Equal(t, tc.status, res.Status)
	}
}

func TestSubmitMakesSingleAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewClient(testConfig(srv.URL), time.Second).Submit(context.Background(), ivan)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, 1, calls)
}

func TestSubmitTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewClient(testConfig(url), time.Second).Submit(context.Background(), ivan)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)
	assert.Error(t, res.Err)
	assert.Zero(t, res.Status)
}

func TestSubmitTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := NewClient(testConfig(srv.URL), 50*time.Millisecond).Submit(context.Background(), ivan)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)
	assert.Less(t, res.Took, 2*time.Second)
}

type errDoer struct{ err error }

func (d errDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestSubmitWithDoer(t *testing.T) {
	boom := errors.New("boom")
	res := NewClientWithDoer(testConfig("http://intake.invalid"), errDoer{boom}).Submit(context.Background(), ivan)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", OutcomeAccepted.String())
	assert.Equal(t, "rejected", OutcomeRejected.String())
	assert.Equal(t, "transport", OutcomeTransportFailure.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
