package store

import (
	"fmt"
	"strings"

	"github.com/blackcoderx/apix/pkg/storage"
)

// The transitions below are pure: they never modify their input State and
// return either a complete next State or an error with the input unchanged.

// RowPatch updates a header or param row. Nil fields are left as they are.
type RowPatch struct {
	Name    *string
	Value   *string
	Enabled *bool
}

func (p RowPatch) apply(row *storage.KeyValue) {
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.Value != nil {
		row.Value = *p.Value
	}
	if p.Enabled != nil {
		row.Enabled = *p.Enabled
	}
}

// FieldPatch updates a form body field.
type FieldPatch struct {
	Key   *string
	Value *string
	Type  *storage.FieldType
}

func (p FieldPatch) apply(f *storage.FormField) {
	if p.Key != nil {
		f.Key = *p.Key
	}
	if p.Value != nil {
		f.Value = *p.Value
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
}

func addRequest(s State) (State, string) {
	n := s.NextID + 1
	id := fmt.Sprintf("request%d", n)
	for s.indexOf(id) >= 0 {
		n++
		id = fmt.Sprintf("request%d", n)
	}

	next := s
	next.NextID = n
	next.Requests = append(cloneRequests(s.Requests), storage.NewRequest(id, fmt.Sprintf("GET Request %d", n)))
	next.ActiveRequestID = id
	return next, id
}

// insertRequest appends req unless a draft with its id already exists.
func insertRequest(s State, req *storage.Request) State {
	if s.indexOf(req.ID) >= 0 {
		return s
	}
	next := s
	next.Requests = append(cloneRequests(s.Requests), req.Clone())
	return next
}

func updateRequest(s State, id string, p storage.RequestPatch) State {
	next, err := withRequest(s, id, func(r *storage.Request) error {
		p.Apply(r)
		return nil
	})
	if err != nil {
		return s
	}
	return next
}

func removeRequest(s State, id string) State {
	i := s.indexOf(id)
	if i < 0 {
		return s
	}

	next := s
	next.Requests = make([]*storage.Request, 0, len(s.Requests)-1)
	next.Requests = append(next.Requests, s.Requests[:i]...)
	next.Requests = append(next.Requests, s.Requests[i+1:]...)

	if s.ActiveRequestID == id {
		next.ActiveRequestID = ""
		if len(s.Requests) > 1 {
			if s.Requests[0].ID == id {
				next.ActiveRequestID = s.Requests[1].ID
			} else {
				next.ActiveRequestID = s.Requests[0].ID
			}
		}
	}

	next.Responses = withoutKey(s.Responses, id)
	next.IsLoading = withoutKey(s.IsLoading, id)
	return next
}

func setActiveRequest(s State, id string) (State, error) {
	if s.indexOf(id) < 0 {
		return s, notFound("request", id)
	}
	next := s
	next.ActiveRequestID = id
	return next, nil
}

func addHeader(s State, requestID string) (State, string, error) {
	var id string
	next, err := withRequest(s, requestID, func(r *storage.Request) error {
		id = nextRowID("header", len(r.Headers), rowIDs(r.Headers))
		r.Headers = append(r.Headers, storage.KeyValue{ID: id, Enabled: true})
		return nil
	})
	return next, id, err
}

func updateHeader(s State, requestID, headerID string, p RowPatch) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		return patchRow(r.Headers, "header", headerID, p)
	})
}

func removeHeader(s State, requestID, headerID string) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		rows, err := dropRow(r.Headers, "header", headerID)
		r.Headers = rows
		return err
	})
}

func addParameter(s State, requestID string) (State, string, error) {
	var id string
	next, err := withRequest(s, requestID, func(r *storage.Request) error {
		id = nextRowID("param", len(r.Params), rowIDs(r.Params))
		r.Params = append(r.Params, storage.KeyValue{ID: id, Enabled: true})
		return nil
	})
	return next, id, err
}

func updateParameter(s State, requestID, paramID string, p RowPatch) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		return patchRow(r.Params, "param", paramID, p)
	})
}

func removeParameter(s State, requestID, paramID string) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		rows, err := dropRow(r.Params, "param", paramID)
		r.Params = rows
		return err
	})
}

func addBodyField(s State, requestID string) (State, string, error) {
	var id string
	next, err := withRequest(s, requestID, func(r *storage.Request) error {
		if !r.BodyType.IsForm() {
			return fmt.Errorf("request %q has body type %s: %w", r.ID, r.BodyType, ErrNotForm)
		}
		form, _ := r.Body.(storage.FormBody)
		used := make(map[string]bool, len(form))
		for _, f := range form {
			used[f.ID] = true
		}
		id = nextRowID("field", len(form), used)
		r.Body = append(form, storage.FormField{ID: id, Type: storage.FieldText})
		return nil
	})
	return next, id, err
}

func updateBodyField(s State, requestID, fieldID string, p FieldPatch) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		form, ok := r.Body.(storage.FormBody)
		if !ok {
			return fmt.Errorf("request %q has body type %s: %w", r.ID, r.BodyType, ErrNotForm)
		}
		for i := range form {
			if form[i].ID == fieldID {
				p.apply(&form[i])
				return nil
			}
		}
		return notFound("field", fieldID)
	})
}

func removeBodyField(s State, requestID, fieldID string) (State, error) {
	return withRequest(s, requestID, func(r *storage.Request) error {
		form, ok := r.Body.(storage.FormBody)
		if !ok {
			return fmt.Errorf("request %q has body type %s: %w", r.ID, r.BodyType, ErrNotForm)
		}
		out := make(storage.FormBody, 0, len(form))
		for _, f := range form {
			if f.ID != fieldID {
				out = append(out, f)
			}
		}
		if len(out) == len(form) {
			return notFound("field", fieldID)
		}
		r.Body = out
		return nil
	})
}

func setLoading(s State, id string, loading bool) State {
	next := s
	next.IsLoading = copyMap(s.IsLoading)
	next.IsLoading[id] = loading
	return next
}

func setResponse(s State, id string, set storage.ResponseSet) State {
	next := s
	next.Responses = copyMap(s.Responses)
	next.Responses[id] = set
	return next
}

func selectResponse(s State, id string, index int) (State, error) {
	set, ok := s.Responses[id]
	if !ok {
		return s, notFound("response", id)
	}
	selected, err := set.Select(index)
	if err != nil {
		return s, err
	}
	return setResponse(s, id, selected), nil
}

func setHistory(s State, entries []storage.HistoryEntry) State {
	next := s
	next.History = append([]storage.HistoryEntry(nil), entries...)
	return next
}

// addHistory keeps one entry per request id, newest last, at most limit.
func addHistory(s State, entry storage.HistoryEntry, limit int) State {
	entries := make([]storage.HistoryEntry, 0, len(s.History)+1)
	for _, h := range s.History {
		if h.ID != entry.ID {
			entries = append(entries, h)
		}
	}
	entries = append(entries, entry)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	next := s
	next.History = entries
	return next
}

func setCollections(s State, cols []storage.Collection) State {
	next := s
	next.Collections = make([]storage.Collection, 0, len(cols))
	for _, c := range cols {
		next.Collections = append(next.Collections, cloneCollection(c))
	}
	return next
}

func addCollection(s State, c storage.Collection) State {
	next := s
	next.Collections = append(append([]storage.Collection(nil), s.Collections...), cloneCollection(c))
	return next
}

func renameCollection(s State, id, name string) (State, error) {
	return withCollection(s, id, func(c *storage.Collection) {
		c.Name = name
	})
}

func removeCollection(s State, id string) (State, error) {
	out := make([]storage.Collection, 0, len(s.Collections))
	for _, c := range s.Collections {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == len(s.Collections) {
		return s, notFound("collection", id)
	}
	next := s
	next.Collections = out
	return next, nil
}

// appendToCollection records a saved request in a collection and adds it to
// the drafts when it is new there.
func appendToCollection(s State, collectionID string, req *storage.Request) (State, error) {
	next, err := withCollection(s, collectionID, func(c *storage.Collection) {
		c.Requests = append(c.Requests, *req.Clone())
	})
	if err != nil {
		return s, err
	}
	return insertRequest(next, req), nil
}

// ImportResult counts what an import added.
type ImportResult struct {
	Collections int
	Requests    int
}

// mergeCollections appends collections and requests whose ids are new.
// Existing entries are never overwritten.
func mergeCollections(s State, cols []storage.Collection) (State, ImportResult) {
	var res ImportResult
	next := s

	known := make(map[string]bool, len(s.Collections))
	for _, c := range s.Collections {
		known[c.ID] = true
	}
	next.Collections = append([]storage.Collection(nil), s.Collections...)
	for _, c := range cols {
		if known[c.ID] {
			continue
		}
		known[c.ID] = true
		next.Collections = append(next.Collections, cloneCollection(c))
		res.Collections++
	}

	seen := make(map[string]bool, len(s.Requests))
	for _, r := range s.Requests {
		seen[r.ID] = true
	}
	next.Requests = cloneRequests(s.Requests)
	for _, c := range cols {
		for i := range c.Requests {
			req := &c.Requests[i]
			if seen[req.ID] {
				continue
			}
			seen[req.ID] = true
			next.Requests = append(next.Requests, req.Clone())
			res.Requests++
		}
	}
	return next, res
}

// withRequest replaces the request id with a modified copy. Other requests
// keep their pointers.
func withRequest(s State, id string, fn func(r *storage.Request) error) (State, error) {
	i := s.indexOf(id)
	if i < 0 {
		return s, notFound("request", id)
	}
	updated := s.Requests[i].Clone()
	if err := fn(updated); err != nil {
		return s, err
	}
	next := s
	next.Requests = cloneRequests(s.Requests)
	next.Requests[i] = updated
	return next, nil
}

func withCollection(s State, id string, fn func(c *storage.Collection)) (State, error) {
	for i := range s.Collections {
		if s.Collections[i].ID != id {
			continue
		}
		updated := cloneCollection(s.Collections[i])
		fn(&updated)
		next := s
		next.Collections = append([]storage.Collection(nil), s.Collections...)
		next.Collections[i] = updated
		return next, nil
	}
	return s, notFound("collection", id)
}

func patchRow(rows []storage.KeyValue, kind, id string, p RowPatch) error {
	for i := range rows {
		if rows[i].ID == id {
			p.apply(&rows[i])
			return nil
		}
	}
	return notFound(kind, id)
}

func dropRow(rows []storage.KeyValue, kind, id string) ([]storage.KeyValue, error) {
	out := make([]storage.KeyValue, 0, len(rows))
	for _, row := range rows {
		if row.ID != id {
			out = append(out, row)
		}
	}
	if len(out) == len(rows) {
		return rows, notFound(kind, id)
	}
	return out, nil
}

// nextRowID returns <prefix><n+1>, moving past ids already in use.
func nextRowID(prefix string, n int, used map[string]bool) string {
	for {
		n++
		id := fmt.Sprintf("%s%d", prefix, n)
		if !used[id] {
			return id
		}
	}
}

func rowIDs(rows []storage.KeyValue) map[string]bool {
	used := make(map[string]bool, len(rows))
	for _, r := range rows {
		used[r.ID] = true
	}
	return used
}

func cloneRequests(reqs []*storage.Request) []*storage.Request {
	return append(make([]*storage.Request, 0, len(reqs)+1), reqs...)
}

func cloneCollection(c storage.Collection) storage.Collection {
	out := c
	out.Requests = make([]storage.Request, 0, len(c.Requests))
	for i := range c.Requests {
		out.Requests = append(out.Requests, *c.Requests[i].Clone())
	}
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func withoutKey[V any](m map[string]V, key string) map[string]V {
	if _, ok := m[key]; !ok {
		return m
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// validateName checks a collection name: trimmed, 1 to 100 characters.
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", invalid("collection name is required")
	case len([]rune(name)) > 100:
		return "", invalid("collection name must be at most 100 characters")
	}
	return name, nil
}
