package session

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/zenriquezs/APIReader/src/logging"
)

// Store holds sessions with idle expiry: every Get extends the session's lifetime.
type Store struct {
	cache   *ttlcache.Cache[string, *Session]
	observe func(n int)

	mu      sync.Mutex
	running bool
}

// NewStore creates a store whose sessions expire after ttl without access. observe,
// when non-nil, is called with the live session count after every change.
func NewStore(ttl time.Duration, observe func(n int)) *Store {
	s := &Store{
		cache:   ttlcache.New[string, *Session](ttlcache.WithTTL[string, *Session](ttl)),
		observe: observe,
	}
	s.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		if reason == ttlcache.EvictionReasonExpired {
			logging.Debugf("[session] %s expired", item.Key())
		}
		// eviction callbacks may run while the cache holds its lock
		go s.notify()
	})
	return s
}

// Start runs the expiry loop in the background until Stop.
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.cache.Start()
}

// Stop ends the expiry loop. It is a no-op when the loop is not running.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cache.Stop()
}

// Get returns a live session and refreshes its expiry.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Create stores and returns a new session.
func (s *Store) Create() *Session {
	sess := New()
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
	s.notify()
	return sess
}

// GetOrCreate returns the session for id, creating a fresh one (with a new ID) when
// id is unknown or expired.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Delete removes a session.
func (s *Store) Delete(id string) { s.cache.Delete(id) }

// Len returns the number of stored sessions.
func (s *Store) Len() int { return s.cache.Len() }

func (s *Store) notify() {
	if s.observe != nil {
		s.observe(s.cache.Len())
	}
}
