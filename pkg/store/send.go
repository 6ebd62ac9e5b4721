package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aymanbagabas/go-udiff"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

// SendRequest resolves a draft against its environment and sends it through
// the proxy. Send failures never reach the caller: the response slot holds
// the proxy's error-shaped answer or a synthetic status 0 response. Only an
// unknown id or a missing proxy is returned as an error.
func (s *Store) SendRequest(ctx context.Context, id string) error {
	req, ok := s.Snapshot().Request(id)
	if !ok {
		return notFound("request", id)
	}
	if s.proxy == nil {
		return ErrNoProxy
	}

	_ = s.apply(func(st State) (State, error) { return setLoading(st, id, true), nil })
	defer func() {
		_ = s.apply(func(st State) (State, error) { return setLoading(st, id, false), nil })
	}()

	var envs []storage.Environment
	if s.envs != nil {
		envs = s.envs.Environments()
	}
	resolved, err := storage.ApplyEnvironment(req, envs)
	if err != nil {
		s.logger.Warn("variable resolution failed, sending request as written",
			logging.RequestID(id), logging.EnvironmentID(req.EnvironmentID), zap.Error(err))
	}

	set, err := s.proxy.Send(ctx, resolved)
	if err != nil {
		if set.Len() == 0 {
			set = storage.SingleResponse(storage.ErrorResponse(failureText(err)))
		}
		s.logger.Warn("send failed", logging.RequestID(id), logging.URL(resolved.URL), zap.Error(err))
		_ = s.apply(func(st State) (State, error) { return setResponse(st, id, set), nil })
		return nil
	}

	_ = s.apply(func(st State) (State, error) { return setResponse(st, id, set), nil })
	if cur, ok := set.Current(); ok {
		s.logger.Info("request sent", logging.RequestID(id), logging.Status(cur.StatusCode))
	}

	s.recordHistory(ctx, storage.Snapshot(req, s.now()))
	return nil
}

func failureText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Request failed"
}

// recordHistory stores entry through the cache when there is one. A cache
// failure is logged and the entry kept in memory only.
func (s *Store) recordHistory(ctx context.Context, entry storage.HistoryEntry) {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	if s.history != nil {
		entries, err := s.history.Add(ctx, entry)
		if err == nil {
			_ = s.apply(func(st State) (State, error) { return setHistory(st, entries), nil })
			return
		}
		s.logger.Warn("history cache write failed", logging.RequestID(entry.ID), zap.Error(err))
	}
	_ = s.apply(func(st State) (State, error) {
		return addHistory(st, entry, DefaultHistoryEntries), nil
	})
}

// LoadHistory replaces the in-memory history with the cached one.
func (s *Store) LoadHistory(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	s.histMu.Lock()
	defer s.histMu.Unlock()
	entries, err := s.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return s.apply(func(st State) (State, error) { return setHistory(st, entries), nil })
}

// ClearHistory empties the history and its cache.
func (s *Store) ClearHistory(ctx context.Context) error {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	if s.history != nil {
		if err := s.history.Clear(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}
	return s.apply(func(st State) (State, error) { return setHistory(st, nil), nil })
}

// DiffFromHistory returns a unified diff from the last sent version of a
// request to its current draft. The diff is empty when nothing changed.
func (s *Store) DiffFromHistory(id string) (string, error) {
	st := s.Snapshot()
	req, ok := st.Request(id)
	if !ok {
		return "", notFound("request", id)
	}
	sent, ok := st.LastSent(id)
	if !ok {
		return "", fmt.Errorf("request %q has not been sent: %w", id, ErrNotFound)
	}

	before, err := diffText(sent.Request())
	if err != nil {
		return "", err
	}
	after, err := diffText(req)
	if err != nil {
		return "", err
	}
	if before == after {
		return "", nil
	}

	edits := udiff.Strings(before, after)
	unified, err := udiff.ToUnified("sent/"+id, "draft/"+id, before, edits, 3)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", id, err)
	}
	return unified, nil
}

// diffText renders the fields a history entry records; name and
// environment are blanked.
func diffText(req *storage.Request) (string, error) {
	r := req.Clone()
	r.Name = ""
	r.EnvironmentID = ""
	out, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("render request %s: %w", req.ID, err)
	}
	return string(out), nil
}

// IsNotFound reports whether err is a lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
