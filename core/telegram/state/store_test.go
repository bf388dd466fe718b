package state

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStoreCreateGetDelete(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()

	_, ok := s.Get(1)
	assert.False(t, ok)

	sess := s.Create(1)
	require.NotNil(t, sess)
	assert.Empty(t, sess.QuizAnswers)
	assert.NotNil(t, sess.QuizAnswers)
	assert.Equal(t, StepNone, sess.Step)

	sess.QuizAnswers = append(sess.QuizAnswers, "a")
	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, s.Len())

	fresh := s.Create(1)
	assert.NotSame(t, sess, fresh)
	assert.Empty(t, fresh.QuizAnswers)
	assert.Equal(t, 1, s.Len())

	s.Delete(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	s.Delete(42)
}

func TestStoreTTLSlidesOnAccess(t *testing.T) {
	s := NewMemoryStore(Options{TTL: 80 * time.Millisecond})
	defer s.Close()

	s.Create(7)
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		_, ok := s.Get(7)
		require.True(t, ok, "session expired despite access %d", i)
	}

	time.Sleep(120 * time.Millisecond)
	_, ok := s.Get(7)
	assert.False(t, ok)
}

func TestStoreSweepEvictsAbandonedSessions(t *testing.T) {
	var evicted atomic.Int64
	s := NewMemoryStore(Options{
		TTL:             20 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
		OnEvict:         func(id int64) { evicted.Store(id) },
	})
	defer s.Close()

	s.Create(9)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(9), evicted.Load())
}

func TestStoreDeleteDoesNotReportEviction(t *testing.T) {
	var calls atomic.Int32
	s := NewMemoryStore(Options{
		TTL:             time.Hour,
		CleanupInterval: time.Hour,
		OnEvict:         func(int64) { calls.Add(1) },
	})
	defer s.Close()

	s.Create(3)
	s.Delete(3)
	assert.Zero(t, calls.Load())
}

func TestStoreLockSerializesSameUser(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()
	s.Create(1)

	var (
		wg      sync.WaitGroup
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(1)
			defer unlock()
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			sess, _ := s.Get(1)
			sess.QuizAnswers = append(sess.QuizAnswers, "x")
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	sess, _ := s.Get(1)
	assert.Len(t, sess.QuizAnswers, 20)
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, s.locks.size())
}

func TestStoreLockDifferentUsersDoNotContend(t *testing.T) {
	s := NewMemoryStore(Options{})
	defer s.Close()

	unlockA := s.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := s.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked on user 1")
	}
	unlockA()
	unlockA()
	assert.Zero(t, s.locks.size())
}

func TestSessionAdvance(t *testing.T) {
	sess := &Session{}
	require.NoError(t, sess.Advance(StepName))
	require.NoError(t, sess.Advance(StepSurname))
	require.NoError(t, sess.Advance(StepSurname))
	require.NoError(t, sess.Advance(StepEmail))

	err := sess.Advance(StepPhone)
	assert.ErrorIs(t, err, ErrStepRegression)
	assert.Equal(t, StepEmail, sess.Step)

	assert.ErrorIs(t, sess.Advance(StepNone), ErrStepRegression)
	assert.Error(t, sess.Advance(Step(99)))
	assert.Equal(t, StepEmail, sess.Step)
	assert.True(t, sess.InForm())
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "none", StepNone.String())
	assert.Equal(t, "email", StepEmail.String())
	assert.Equal(t, "step(9)", Step(9).String())
}
