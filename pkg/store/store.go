package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

// CollectionService persists collections. *client.Client implements it.
type CollectionService interface {
	ListCollections(ctx context.Context, workspaceID string) ([]storage.Collection, error)
	CreateCollection(ctx context.Context, workspaceID, name string) (storage.Collection, error)
	RenameCollection(ctx context.Context, id, name string) error
	DeleteCollection(ctx context.Context, id string) error
	AddRequestToCollection(ctx context.Context, collectionID string, req storage.Request) (storage.Request, error)
}

// Proxy performs the outbound call for a resolved request.
type Proxy interface {
	Send(ctx context.Context, req *storage.Request) (storage.ResponseSet, error)
}

// EnvironmentSource supplies the environments used to resolve placeholders.
type EnvironmentSource interface {
	Environments() []storage.Environment
}

// HistoryCache persists the per-workspace history. *history.Store
// implements it.
type HistoryCache interface {
	Load(ctx context.Context) ([]storage.HistoryEntry, error)
	Add(ctx context.Context, entry storage.HistoryEntry) ([]storage.HistoryEntry, error)
	Clear(ctx context.Context) error
}

// DefaultHistoryEntries caps the in-memory history when no cache is set.
const DefaultHistoryEntries = 10

// Store applies transitions to the workspace State. The mutex is held only
// to read or swap the state, never across network calls.
type Store struct {
	mu    sync.Mutex
	state State

	// histMu orders cache writes with the state updates that follow them.
	histMu sync.Mutex

	workspaceID string
	collections CollectionService
	proxy       Proxy
	envs        EnvironmentSource
	history     HistoryCache
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures a Store.
type Option func(*Store)

// WithCollectionService makes collection operations go through the backend.
// Without it collections only live in the store.
func WithCollectionService(svc CollectionService) Option {
	return func(s *Store) { s.collections = svc }
}

// WithProxy sets the proxy SendRequest dispatches through.
func WithProxy(p Proxy) Option {
	return func(s *Store) { s.proxy = p }
}

// WithEnvironments sets where SendRequest finds variables.
func WithEnvironments(src EnvironmentSource) Option {
	return func(s *Store) { s.envs = src }
}

// WithHistory persists sent requests in h.
func WithHistory(h HistoryCache) Option {
	return func(s *Store) { s.history = h }
}

// WithWorkspace names the workspace new collections are created in.
func WithWorkspace(id string) Option {
	return func(s *Store) { s.workspaceID = id }
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock replaces time.Now for history dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithState starts the store from a saved state instead of the default
// single draft.
func WithState(st State) Option {
	return func(s *Store) { s.state = st }
}

// New creates a store holding the default draft.
func New(opts ...Option) *Store {
	s := &Store{
		state: NewState(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).With(logging.Component("store"), logging.Workspace(s.workspaceID))
	return s
}

// Snapshot returns the current state. Treat it as read-only.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// apply runs fn on the current state and publishes the result unless fn
// fails.
func (s *Store) apply(fn func(State) (State, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.state)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// AddRequest creates a default GET draft, makes it active and returns its
// id. With a collectionID the draft is also saved into that collection; if
// saving fails the draft is kept and the error returned alongside the id.
func (s *Store) AddRequest(ctx context.Context, collectionID string) (string, error) {
	var id string
	_ = s.apply(func(st State) (State, error) {
		next, newID := addRequest(st)
		id = newID
		return next, nil
	})
	s.logger.Debug("request added", logging.RequestID(id))

	if collectionID == "" {
		return id, nil
	}
	if err := s.AddRequestToCollection(ctx, collectionID, id); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateRequest merges p into a draft. An unknown id is ignored.
func (s *Store) UpdateRequest(id string, p storage.RequestPatch) {
	_ = s.apply(func(st State) (State, error) {
		return updateRequest(st, id, p), nil
	})
}

// ReplaceRequest overwrites every field of a draft with req, keeping the
// draft's id and name when req leaves them empty.
func (s *Store) ReplaceRequest(id string, req *storage.Request) error {
	return s.apply(func(st State) (State, error) {
		return withRequest(st, id, func(r *storage.Request) error {
			name := r.Name
			*r = *req.Clone()
			r.ID = id
			if r.Name == "" {
				r.Name = name
			}
			if r.EnvironmentID == "" {
				r.EnvironmentID = storage.GlobalEnvironmentID
			}
			return r.Validate()
		})
	})
}

// RemoveRequest deletes a draft. When it was active the first remaining
// draft becomes active.
func (s *Store) RemoveRequest(id string) {
	_ = s.apply(func(st State) (State, error) {
		return removeRequest(st, id), nil
	})
}

// SetActiveRequest makes id the active draft. Unknown ids return ErrNotFound.
func (s *Store) SetActiveRequest(id string) error {
	return s.apply(func(st State) (State, error) {
		return setActiveRequest(st, id)
	})
}

// AddHeader appends an empty enabled header and returns its id.
func (s *Store) AddHeader(requestID string) (string, error) {
	var id string
	err := s.apply(func(st State) (State, error) {
		next, newID, err := addHeader(st, requestID)
		id = newID
		return next, err
	})
	return id, err
}

// UpdateHeader applies p to one header row.
func (s *Store) UpdateHeader(requestID, headerID string, p RowPatch) error {
	return s.apply(func(st State) (State, error) {
		return updateHeader(st, requestID, headerID, p)
	})
}

// RemoveHeader deletes one header row.
func (s *Store) RemoveHeader(requestID, headerID string) error {
	return s.apply(func(st State) (State, error) {
		return removeHeader(st, requestID, headerID)
	})
}

// AddParameter appends an empty enabled query parameter and returns its id.
func (s *Store) AddParameter(requestID string) (string, error) {
	var id string
	err := s.apply(func(st State) (State, error) {
		next, newID, err := addParameter(st, requestID)
		id = newID
		return next, err
	})
	return id, err
}

// UpdateParameter applies p to one query parameter row.
func (s *Store) UpdateParameter(requestID, paramID string, p RowPatch) error {
	return s.apply(func(st State) (State, error) {
		return updateParameter(st, requestID, paramID, p)
	})
}

// RemoveParameter deletes one query parameter row.
func (s *Store) RemoveParameter(requestID, paramID string) error {
	return s.apply(func(st State) (State, error) {
		return removeParameter(st, requestID, paramID)
	})
}

// AddBodyField appends an empty text field to a form body. Other body types
// return ErrNotForm.
func (s *Store) AddBodyField(requestID string) (string, error) {
	var id string
	err := s.apply(func(st State) (State, error) {
		next, newID, err := addBodyField(st, requestID)
		id = newID
		return next, err
	})
	return id, err
}

// UpdateBodyField applies p to one form field.
func (s *Store) UpdateBodyField(requestID, fieldID string, p FieldPatch) error {
	return s.apply(func(st State) (State, error) {
		return updateBodyField(st, requestID, fieldID, p)
	})
}

// RemoveBodyField deletes one form field.
func (s *Store) RemoveBodyField(requestID, fieldID string) error {
	return s.apply(func(st State) (State, error) {
		return removeBodyField(st, requestID, fieldID)
	})
}

// SelectResponse picks which step of a multi-step response is viewed.
func (s *Store) SelectResponse(requestID string, index int) error {
	return s.apply(func(st State) (State, error) {
		return selectResponse(st, requestID, index)
	})
}

// Drafts returns the saved form of the current drafts.
func (s *Store) Drafts() storage.Drafts {
	return s.Snapshot().Drafts()
}

// SaveDrafts writes the drafts to path.
func (s *Store) SaveDrafts(path string) error {
	if err := storage.SaveDrafts(s.Drafts(), path); err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

// LoadDrafts replaces the drafts and local collections with those saved at
// path. A missing or empty file keeps the current state.
func (s *Store) LoadDrafts(path string) error {
	d, err := storage.LoadDrafts(path)
	if err != nil {
		return fmt.Errorf("load drafts: %w", err)
	}
	if len(d.Requests) == 0 && len(d.Collections) == 0 {
		return nil
	}
	loaded := StateFromDrafts(d)
	return s.apply(func(st State) (State, error) {
		next := st
		if len(loaded.Requests) > 0 {
			next.Requests = loaded.Requests
			next.ActiveRequestID = loaded.ActiveRequestID
		}
		if len(loaded.Collections) > 0 {
			next.Collections = loaded.Collections
		}
		if loaded.NextID > next.NextID {
			next.NextID = loaded.NextID
		}
		return next, nil
	})
}
