package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcoderx/apix/pkg/storage"
)

func ptr[T any](v T) *T { return &v }

func stateWith(n int) State {
	s := State{}
	for i := 0; i < n; i++ {
		s, _ = addRequest(s)
	}
	return s
}

func TestNewState(t *testing.T) {
	s := NewState()
	require.Len(t, s.Requests, 1)
	assert.Equal(t, "request1", s.Requests[0].ID)
	assert.Equal(t, "GET Request 1", s.Requests[0].Name)
	assert.Equal(t, "request1", s.ActiveRequestID)
	assert.Len(t, s.Requests[0].Headers, 5)
}

func TestAddRequest_IDsNeverReused(t *testing.T) {
	s := stateWith(3)
	s = removeRequest(s, "request3")
	s, id := addRequest(s)
	assert.Equal(t, "request4", id)
	assert.Equal(t, "GET Request 4", s.Requests[len(s.Requests)-1].Name)
	assert.Equal(t, id, s.ActiveRequestID)
}

func TestAddRequest_SkipsTakenIDs(t *testing.T) {
	s := State{}
	s = insertRequest(s, storage.NewRequest("request1", "imported"))
	s, id := addRequest(s)
	assert.Equal(t, "request2", id)
}

func TestUpdateRequest_StructuralSharing(t *testing.T) {
	s := stateWith(3)
	before := s.Requests

	next := updateRequest(s, "request2", storage.RequestPatch{URL: ptr("https://x.io")})

	assert.Same(t, before[0], next.Requests[0])
	assert.Same(t, before[2], next.Requests[2])
	assert.NotSame(t, before[1], next.Requests[1])
	assert.Equal(t, "https://x.io", next.Requests[1].URL)
	assert.Equal(t, "", s.Requests[1].URL, "input state must not change")
}

func TestUpdateRequest_UnknownIDIsNoop(t *testing.T) {
	s := stateWith(1)
	next := updateRequest(s, "nope", storage.RequestPatch{URL: ptr("x")})
	assert.Equal(t, s, next)
}

func TestUpdateRequest_BodyTypeSwitchDiscardsBody(t *testing.T) {
	s := stateWith(1)
	s = updateRequest(s, "request1", storage.RequestPatch{Body: storage.TextBody(`{"a":1}`)})
	s = updateRequest(s, "request1", storage.RequestPatch{BodyType: ptr(storage.BodyFormData)})

	r, _ := s.Request("request1")
	assert.Equal(t, storage.FormBody{}, r.Body)

	s = updateRequest(s, "request1", storage.RequestPatch{BodyType: ptr(storage.BodyNone)})
	r, _ = s.Request("request1")
	assert.Nil(t, r.Body)
}

func TestRemoveRequest_ActiveFallback(t *testing.T) {
	tests := []struct {
		name       string
		active     string
		remove     string
		wantActive string
	}{
		{"first removed", "request1", "request1", "request2"},
		{"middle removed", "request2", "request2", "request1"},
		{"last removed", "request3", "request3", "request1"},
		{"inactive removed", "request3", "request1", "request3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateWith(3)
			s.ActiveRequestID = tt.active
			next := removeRequest(s, tt.remove)
			assert.Equal(t, tt.wantActive, next.ActiveRequestID)
			_, ok := next.Request(next.ActiveRequestID)
			assert.True(t, ok)
			assert.Len(t, next.Requests, 2)
		})
	}
}

func TestRemoveRequest_LastOne(t *testing.T) {
	s := stateWith(1)
	next := removeRequest(s, "request1")
	assert.Empty(t, next.Requests)
	assert.Equal(t, "", next.ActiveRequestID)
}

func TestRemoveRequest_DropsResponse(t *testing.T) {
	s := stateWith(2)
	s = setResponse(s, "request1", storage.SingleResponse(storage.ErrorResponse("x")))
	next := removeRequest(s, "request1")
	_, ok := next.Response("request1")
	assert.False(t, ok)
	_, ok = s.Response("request1")
	assert.True(t, ok)
}

func TestSetActiveRequest(t *testing.T) {
	s := stateWith(2)
	next, err := setActiveRequest(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "request1", next.ActiveRequestID)

	_, err = setActiveRequest(s, "request9")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestHeaders(t *testing.T) {
	s := stateWith(1)

	s, id, err := addHeader(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "header6", id)

	s, err = removeHeader(s, "request1", "header2")
	require.NoError(t, err)

	// five rows now; header6 is taken, so the next id moves past it
	s, id, err = addHeader(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "header7", id)

	s, err = updateHeader(s, "request1", "header7", RowPatch{Name: ptr("X-Trace"), Value: ptr("on"), Enabled: ptr(false)})
	require.NoError(t, err)

	r, _ := s.Request("request1")
	require.NoError(t, r.Validate())
	last := r.Headers[len(r.Headers)-1]
	assert.Equal(t, storage.KeyValue{ID: "header7", Name: "X-Trace", Value: "on", Enabled: false}, last)

	_, err = updateHeader(s, "request1", "header99", RowPatch{})
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = removeHeader(s, "request1", "header99")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, _, err = addHeader(s, "request9")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParameters(t *testing.T) {
	s := stateWith(1)

	s, id, err := addParameter(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "param1", id)
	s, id, err = addParameter(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "param2", id)

	s, err = updateParameter(s, "request1", "param1", RowPatch{Name: ptr("page"), Value: ptr("2")})
	require.NoError(t, err)
	s, err = removeParameter(s, "request1", "param2")
	require.NoError(t, err)

	r, _ := s.Request("request1")
	assert.Equal(t, []storage.KeyValue{{ID: "param1", Name: "page", Value: "2", Enabled: true}}, r.Params)
}

func TestBodyFields(t *testing.T) {
	s := stateWith(1)

	_, _, err := addBodyField(s, "request1")
	assert.True(t, errors.Is(err, ErrNotForm), "raw bodies take no fields")

	s = updateRequest(s, "request1", storage.RequestPatch{BodyType: ptr(storage.BodyURLEncoded)})
	s, id, err := addBodyField(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "field1", id)

	s, err = updateBodyField(s, "request1", "field1", FieldPatch{Key: ptr("q"), Value: ptr("go")})
	require.NoError(t, err)
	s, id, err = addBodyField(s, "request1")
	require.NoError(t, err)
	assert.Equal(t, "field2", id)
	s, err = removeBodyField(s, "request1", "field2")
	require.NoError(t, err)

	r, _ := s.Request("request1")
	assert.Equal(t, storage.FormBody{{ID: "field1", Key: "q", Value: "go", Type: storage.FieldText}}, r.Body)

	_, err = removeBodyField(s, "request1", "field2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddHistory(t *testing.T) {
	s := State{}
	for i := 1; i <= 12; i++ {
		s = addHistory(s, storage.HistoryEntry{ID: fmt.Sprintf("request%d", i)}, 10)
	}
	s = addHistory(s, storage.HistoryEntry{ID: "request5", URL: "again"}, 10)

	require.Len(t, s.History, 10)
	seen := map[string]bool{}
	for _, h := range s.History {
		assert.False(t, seen[h.ID], "duplicate %s", h.ID)
		seen[h.ID] = true
	}
	assert.Equal(t, "request5", s.History[9].ID)
	assert.Equal(t, "again", s.History[9].URL)
	assert.Equal(t, "request3", s.History[0].ID)
}

func TestSelectResponse(t *testing.T) {
	s := stateWith(1)
	set := storage.ResponseSet{Responses: []storage.Response{{StatusCode: 301}, {StatusCode: 200}}, Selected: 1}
	s = setResponse(s, "request1", set)

	next, err := selectResponse(s, "request1", 0)
	require.NoError(t, err)
	cur, _ := next.Responses["request1"].Current()
	assert.Equal(t, 301, cur.StatusCode)

	_, err = selectResponse(s, "request1", 2)
	assert.Error(t, err)
	_, err = selectResponse(s, "request9", 0)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMergeCollections(t *testing.T) {
	s := stateWith(1)
	s = addCollection(s, storage.Collection{ID: "c1", Name: "Users", Requests: []storage.Request{}})

	imported := []storage.Collection{
		{ID: "c1", Name: "Replaced?", Requests: []storage.Request{*storage.NewRequest("request1", "dup")}},
		{ID: "c2", Name: "Orders", Requests: []storage.Request{*storage.NewRequest("r-orders", "List orders")}},
	}
	next, res := mergeCollections(s, imported)

	assert.Equal(t, ImportResult{Collections: 1, Requests: 1}, res)
	require.Len(t, next.Collections, 2)
	assert.Equal(t, "Users", next.Collections[0].Name)
	assert.Equal(t, "Orders", next.Collections[1].Name)
	require.Len(t, next.Requests, 2)
	assert.Equal(t, "GET Request 1", next.Requests[0].Name)
	assert.Equal(t, "r-orders", next.Requests[1].ID)
}

func TestValidateName(t *testing.T) {
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  Users ", "Users", false},
		{"", "", true},
		{"   ", "", true},
		{string(long[:100]), string(long[:100]), false},
		{string(long), "", true},
	}
	for _, tt := range tests {
		got, err := validateName(tt.in)
		if tt.wantErr {
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "input %q", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
