package state

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/m3rciful/leadbot/core/logger"
)

// Store maps user ids to sessions.
type Store interface {
	// Get returns the user's session and refreshes its TTL.
	Get(userID int64) (*Session, bool)
	// Create stores a fresh session, replacing any existing one.
	Create(userID int64) *Session
	Delete(userID int64)
	Len() int
	// Lock serializes callers for one user until the returned func is called.
	Lock(userID int64) (unlock func())
}

// Options configures a MemoryStore.
type Options struct {
	// TTL evicts sessions idle for longer than this. Zero keeps them forever.
	TTL time.Duration
	// CleanupInterval is how often expired sessions are purged. Zero disables the sweep;
	// expired sessions are then only hidden from Get.
	CleanupInterval time.Duration
	// OnEvict is called after a session expires. Explicit deletes do not trigger it.
	OnEvict func(userID int64)
}

type entry struct {
	sess    *Session
	deleted atomic.Bool
}

// MemoryStore is a Store backed by go-cache.
type MemoryStore struct {
	mu      sync.Mutex
	items   *cache.Cache
	locks   *keyedMutex
	onEvict func(int64)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts the expiry sweep when configured.
// Call Close to stop it.
func NewMemoryStore(opts Options) *MemoryStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s := &MemoryStore{
		items:   cache.New(ttl, 0),
		locks:   newKeyedMutex(),
		onEvict: opts.OnEvict,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.items.OnEvicted(s.evicted)

	if opts.CleanupInterval > 0 && opts.TTL > 0 {
		go s.sweep(opts.CleanupInterval)
	} else {
		close(s.done)
	}
	return s
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Get implements Store.
func (s *MemoryStore) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items.Get(key(userID))
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	s.items.SetDefault(key(userID), e)
	return e.sess, true
}

// Create implements Store.
func (s *MemoryStore) Create(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{sess: &Session{QuizAnswers: []string{}}}
	s.items.SetDefault(key(userID), e)
	return e.sess
}

// Delete implements Store.
func (s *MemoryStore) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID)
	if v, ok := s.items.Get(k); ok {
		v.(*entry).deleted.Store(true)
	}
	s.items.Delete(k)
}

// Len implements Store. Expired sessions awaiting the sweep are counted.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

// Lock implements Store.
func (s *MemoryStore) Lock(userID int64) func() {
	return s.locks.Lock(userID)
}

// Close stops the expiry sweep.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *MemoryStore) sweep(every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.items.DeleteExpired()
		}
	}
}

func (s *MemoryStore) evicted(k string, v interface{}) {
	e, ok := v.(*entry)
	if !ok || e.deleted.Load() {
		return
	}
	userID, _ := strconv.ParseInt(k, 10, 64)
	logger.Info(context.Background(), logger.CompSession, "session.evicted",
		slog.String("status", "ok"),
		slog.String("reason", "ttl"),
		slog.Int64("user_id", userID),
		slog.String("step", e.sess.Step.String()),
		slog.Int("answers", len(e.sess.QuizAnswers)),
	)
	if s.onEvict != nil {
		s.onEvict(userID)
	}
}
