// Package history keeps the per-workspace log of sent requests: at most a
// fixed number of entries, one per request id, dropped wholesale once the
// last write is older than the TTL.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

const (
	DefaultMaxEntries = 10
	DefaultTTL        = 24 * time.Hour
)

// Key returns the cache key holding a workspace's history.
func Key(workspaceID string) string {
	return fmt.Sprintf("workspace_%s_history", workspaceID)
}

type record struct {
	Data      []storage.HistoryEntry `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Store reads and writes one workspace's history.
type Store struct {
	kv     KV
	key    string
	max    int
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(logger) }
}

// New returns the history of workspaceID stored in kv.
func New(kv KV, workspaceID string, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    Key(workspaceID),
		max:    DefaultMaxEntries,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored entries, oldest first. An expired record is
// deleted and reported as empty.
func (s *Store) Load(ctx context.Context) ([]storage.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) ([]storage.HistoryEntry, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok {
		return []storage.HistoryEntry{}, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.key, err)
	}
	if s.now().Sub(rec.Timestamp) > s.ttl {
		s.logger.Debug("history expired", zap.String("key", s.key), zap.Time("written", rec.Timestamp))
		if err := s.kv.Delete(ctx, s.key); err != nil {
			return nil, fmt.Errorf("drop expired history: %w", err)
		}
		return []storage.HistoryEntry{}, nil
	}
	if rec.Data == nil {
		rec.Data = []storage.HistoryEntry{}
	}
	return rec.Data, nil
}

// Add records entry, replacing any earlier entry for the same request id
// and trimming the oldest beyond the cap. It returns the new history.
func (s *Store) Add(ctx context.Context, entry storage.HistoryEntry) ([]storage.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		// a corrupt record must not block new history
		s.logger.Warn("discarding unreadable history", zap.String("key", s.key), zap.Error(err))
		current = nil
	}

	next := make([]storage.HistoryEntry, 0, len(current)+1)
	for _, h := range current {
		if h.ID != entry.ID {
			next = append(next, h)
		}
	}
	next = append(next, entry)
	if len(next) > s.max {
		next = next[len(next)-s.max:]
	}

	data, err := json.Marshal(record{Data: next, Timestamp: s.now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	s.logger.Debug("history saved", logging.RequestID(entry.ID), logging.Count(len(next)))
	return next, nil
}

// Get returns the entry for a request id.
func (s *Store) Get(ctx context.Context, requestID string) (storage.HistoryEntry, bool, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return storage.HistoryEntry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID == requestID {
			return entries[i], true, nil
		}
	}
	return storage.HistoryEntry{}, false, nil
}

// Clear removes the workspace's history.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
