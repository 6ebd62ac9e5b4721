// Package envstore keeps the list of environments in sync with the backend.
// The list only changes after the backend confirms a mutation.
package envstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/client"
	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

// MaxNameLength bounds environment names.
const MaxNameLength = 100

var (
	ErrNotAuthenticated = client.ErrNotAuthenticated
	ErrNotFound         = errors.New("environment not found")
	ErrInvalidIndex     = errors.New("invalid variable index")
	ErrNameRequired     = errors.New("environment name is required")
	ErrNameTooLong      = fmt.Errorf("environment name must be at most %d characters", MaxNameLength)
	ErrGlobalProtected  = errors.New("the global environment cannot be deleted")
	ErrNotArray         = errors.New("variables must be an array")
	ErrGlobalNotStored  = errors.New("the global environment is not stored on the backend")
)

// EnvironmentService is the backend. *client.Client implements it.
type EnvironmentService interface {
	ListEnvironments(ctx context.Context) ([]storage.Environment, error)
	CreateEnvironment(ctx context.Context, name string) (storage.Environment, error)
	UpdateEnvironmentVariables(ctx context.Context, id string, vars []storage.Variable) ([]storage.Variable, error)
	DeleteEnvironment(ctx context.Context, id string) error
}

// SessionSource reports whether credentials are available.
type SessionSource interface {
	LoggedIn() bool
}

// Store caches the backend environments. The list changes only after the
// backend confirms a change.
type Store struct {
	svc     EnvironmentService
	session SessionSource
	logger  *zap.Logger

	mu       sync.RWMutex
	envs     []storage.Environment
	inflight atomic.Int32
}

// New creates an empty store. Call FetchEnvironments to fill it.
func New(svc EnvironmentService, session SessionSource, logger *zap.Logger) *Store {
	return &Store{
		svc:     svc,
		session: session,
		logger:  logging.OrNop(logger).With(logging.Component("envstore")),
	}
}

// Loading reports whether a backend call is in flight.
func (s *Store) Loading() bool {
	return s.inflight.Load() > 0
}

// Environments returns a copy of the list. A global environment is always
// present, synthesised when the backend has none.
func (s *Store) Environments() []storage.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Environment, 0, len(s.envs)+1)
	hasGlobal := false
	for _, env := range s.envs {
		if env.ID == storage.GlobalEnvironmentID {
			hasGlobal = true
		}
		out = append(out, cloneEnv(env))
	}
	if !hasGlobal {
		global := storage.Environment{ID: storage.GlobalEnvironmentID, Name: "Global", Variables: []storage.Variable{}}
		out = append([]storage.Environment{global}, out...)
	}
	return out
}

// Find looks an environment up by id, then by case-insensitive name.
func (s *Store) Find(idOrName string) (storage.Environment, bool) {
	envs := s.Environments()
	for _, env := range envs {
		if env.ID == idOrName {
			return env, true
		}
	}
	for _, env := range envs {
		if strings.EqualFold(env.Name, idOrName) {
			return env, true
		}
	}
	return storage.Environment{}, false
}

// call runs fn as one backend call, refusing when there is no session.
func (s *Store) call(fn func() error) error {
	if s.session == nil || !s.session.LoggedIn() {
		return ErrNotAuthenticated
	}
	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	return fn()
}

// FetchEnvironments replaces the cached list with the backend's.
func (s *Store) FetchEnvironments(ctx context.Context) error {
	return s.call(func() error {
		envs, err := s.svc.ListEnvironments(ctx)
		if err != nil {
			return fmt.Errorf("fetch environments: %w", err)
		}
		s.mu.Lock()
		s.envs = envs
		s.mu.Unlock()
		s.logger.Debug("environments fetched", logging.Count(len(envs)))
		return nil
	})
}

// AddEnvironment creates an empty environment named name, trimmed.
func (s *Store) AddEnvironment(ctx context.Context, name string) (storage.Environment, error) {
	if s.session == nil || !s.session.LoggedIn() {
		return storage.Environment{}, ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return storage.Environment{}, ErrNameRequired
	case len([]rune(name)) > MaxNameLength:
		return storage.Environment{}, ErrNameTooLong
	}

	var env storage.Environment
	err := s.call(func() error {
		created, err := s.svc.CreateEnvironment(ctx, name)
		if err != nil {
			return fmt.Errorf("create environment: %w", err)
		}
		if created.Variables == nil {
			created.Variables = []storage.Variable{}
		}
		env = created
		s.mu.Lock()
		s.envs = append(s.envs, cloneEnv(created))
		s.mu.Unlock()
		s.logger.Info("environment created", logging.EnvironmentID(created.ID))
		return nil
	})
	return env, err
}

// UpdateEnvironmentVariables replaces the variables of an environment. vars
// may be a []storage.Variable or decoded JSON; entries without a string key
// and a string value are dropped. It returns the list the backend stored.
func (s *Store) UpdateEnvironmentVariables(ctx context.Context, id string, vars any) ([]storage.Variable, error) {
	if s.session == nil || !s.session.LoggedIn() {
		return nil, ErrNotAuthenticated
	}
	if !s.stored(id) {
		return nil, fmt.Errorf("%s: %w", id, ErrGlobalNotStored)
	}
	valid, err := FilterVariables(vars)
	if err != nil {
		return nil, err
	}

	var stored []storage.Variable
	err = s.call(func() error {
		out, err := s.svc.UpdateEnvironmentVariables(ctx, id, valid)
		if err != nil {
			return fmt.Errorf("update environment %s: %w", id, err)
		}
		stored = out
		s.mu.Lock()
		for i := range s.envs {
			if s.envs[i].ID == id {
				s.envs[i].Variables = append([]storage.Variable(nil), out...)
			}
		}
		s.mu.Unlock()
		s.logger.Info("environment variables updated", logging.EnvironmentID(id), logging.Count(len(out)))
		return nil
	})
	return stored, err
}

// DeleteEnvironment removes an environment. The global one is refused.
func (s *Store) DeleteEnvironment(ctx context.Context, id string) error {
	if s.session == nil || !s.session.LoggedIn() {
		return ErrNotAuthenticated
	}
	if id == storage.GlobalEnvironmentID {
		return ErrGlobalProtected
	}
	return s.call(func() error {
		if err := s.svc.DeleteEnvironment(ctx, id); err != nil {
			return fmt.Errorf("delete environment %s: %w", id, err)
		}
		s.mu.Lock()
		out := s.envs[:0:0]
		for _, env := range s.envs {
			if env.ID != id {
				out = append(out, env)
			}
		}
		s.envs = out
		s.mu.Unlock()
		s.logger.Info("environment deleted", logging.EnvironmentID(id))
		return nil
	})
}

// DeleteEnvironmentVariable removes the variable at index.
func (s *Store) DeleteEnvironmentVariable(ctx context.Context, id string, index int) error {
	if s.session == nil || !s.session.LoggedIn() {
		return ErrNotAuthenticated
	}
	env, ok := s.byID(id)
	if !ok || index < 0 || index >= len(env.Variables) {
		return ErrInvalidIndex
	}
	vars := make([]storage.Variable, 0, len(env.Variables)-1)
	vars = append(vars, env.Variables[:index]...)
	vars = append(vars, env.Variables[index+1:]...)
	_, err := s.UpdateEnvironmentVariables(ctx, id, vars)
	return err
}

// SetVariable sets key to value, replacing an existing variable with that
// key or appending a new one.
func (s *Store) SetVariable(ctx context.Context, id, key, value string) error {
	env, ok := s.byID(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	_, err := s.UpdateEnvironmentVariables(ctx, id, mergeVariables(env.Variables, map[string]string{key: value}))
	return err
}

// ImportDotenv merges the variables of a .env file into an environment and
// returns how many were read.
func (s *Store) ImportDotenv(ctx context.Context, id, path string) (int, error) {
	env, ok := s.byID(id)
	if !ok {
		return 0, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := s.UpdateEnvironmentVariables(ctx, id, mergeVariables(env.Variables, values)); err != nil {
		return 0, err
	}
	return len(values), nil
}

// stored reports whether id may be written to the backend. Only the
// synthesised global environment may not.
func (s *Store) stored(id string) bool {
	if id != storage.GlobalEnvironmentID {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, env := range s.envs {
		if env.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) byID(id string) (storage.Environment, bool) {
	for _, env := range s.Environments() {
		if env.ID == id {
			return env, true
		}
	}
	return storage.Environment{}, false
}

// mergeVariables overwrites existing keys in place and appends new ones in
// key order.
func mergeVariables(vars []storage.Variable, values map[string]string) []storage.Variable {
	out := append([]storage.Variable(nil), vars...)
	seen := make(map[string]bool, len(values))
	for i := range out {
		if v, ok := values[out[i].Key]; ok {
			out[i].Value = v
			seen[out[i].Key] = true
		}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, storage.Variable{Key: k, Value: values[k]})
	}
	return out
}

// FilterVariables keeps the well-formed {key, value} string pairs of vars.
func FilterVariables(vars any) ([]storage.Variable, error) {
	switch v := vars.(type) {
	case []storage.Variable:
		return append([]storage.Variable{}, v...), nil
	case []map[string]string:
		out := make([]storage.Variable, 0, len(v))
		for _, m := range v {
			key, hasKey := m["key"]
			value, hasValue := m["value"]
			if hasKey && hasValue {
				out = append(out, storage.Variable{Key: key, Value: value})
			}
		}
		return out, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return FilterVariables(items)
	case []any:
		out := make([]storage.Variable, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case storage.Variable:
				out = append(out, m)
			case map[string]any:
				key, okKey := m["key"].(string)
				value, okValue := m["value"].(string)
				if okKey && okValue {
					out = append(out, storage.Variable{Key: key, Value: value})
				}
			}
		}
		return out, nil
	default:
		return nil, ErrNotArray
	}
}

func cloneEnv(env storage.Environment) storage.Environment {
	env.Variables = append([]storage.Variable{}, env.Variables...)
	return env
}
