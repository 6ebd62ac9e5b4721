// Package store owns the in-memory draft workspace: requests, collections,
// responses and history. Every change is a pure transition from one State to
// the next; Store serialises them and publishes the result.
package store

import (
	"fmt"

	"github.com/blackcoderx/apix/pkg/storage"
)

// State is the draft workspace at one point in time. A published State is
// never modified: transitions copy what they change and share the rest, so
// a request untouched by an update keeps its pointer.
type State struct {
	Requests        []*storage.Request
	Collections     []storage.Collection
	ActiveRequestID string
	Responses       map[string]storage.ResponseSet
	IsLoading       map[string]bool
	History         []storage.HistoryEntry
	// NextID backs the request<N> counter. It only grows.
	NextID int
}

// NewState returns a workspace holding the single default draft request1.
func NewState() State {
	s, _ := addRequest(State{})
	return s
}

// StateFromDrafts rebuilds a workspace from a saved draft list.
func StateFromDrafts(d storage.Drafts) State {
	s := State{
		Requests:        make([]*storage.Request, 0, len(d.Requests)),
		ActiveRequestID: d.ActiveRequestID,
		NextID:          d.NextID,
	}
	for i := range d.Requests {
		s.Requests = append(s.Requests, d.Requests[i].Clone())
	}
	for _, c := range d.Collections {
		s.Collections = append(s.Collections, cloneCollection(c))
	}
	if _, ok := s.Request(s.ActiveRequestID); !ok {
		s.ActiveRequestID = ""
		if len(s.Requests) > 0 {
			s.ActiveRequestID = s.Requests[0].ID
		}
	}
	return s
}

// Drafts returns the part of s that is saved between runs.
func (s State) Drafts() storage.Drafts {
	d := storage.Drafts{
		Requests:        make([]storage.Request, 0, len(s.Requests)),
		ActiveRequestID: s.ActiveRequestID,
		NextID:          s.NextID,
	}
	for _, r := range s.Requests {
		d.Requests = append(d.Requests, *r.Clone())
	}
	for _, c := range s.Collections {
		d.Collections = append(d.Collections, cloneCollection(c))
	}
	return d
}

// Request returns the draft with the given id.
func (s State) Request(id string) (*storage.Request, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return s.Requests[i], true
}

// ActiveRequest returns the draft being edited, if any.
func (s State) ActiveRequest() (*storage.Request, bool) {
	return s.Request(s.ActiveRequestID)
}

// Response returns the last response stored for a request.
func (s State) Response(id string) (storage.ResponseSet, bool) {
	set, ok := s.Responses[id]
	return set, ok
}

// Loading reports whether a send is in flight for id.
func (s State) Loading(id string) bool {
	return s.IsLoading[id]
}

// Collection returns the collection with the given id.
func (s State) Collection(id string) (storage.Collection, bool) {
	for _, c := range s.Collections {
		if c.ID == id {
			return c, true
		}
	}
	return storage.Collection{}, false
}

// LastSent returns the history entry of a request.
func (s State) LastSent(id string) (storage.HistoryEntry, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].ID == id {
			return s.History[i], true
		}
	}
	return storage.HistoryEntry{}, false
}

func (s State) indexOf(id string) int {
	for i, r := range s.Requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
