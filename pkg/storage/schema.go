// Package storage holds the request model shared by every apix component:
// request drafts, collections, environments, history snapshots and proxy
// responses, together with the environment resolver and the on-disk draft
// snapshot.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GlobalEnvironmentID names the environment that always exists and is used
// when a request does not reference one.
const GlobalEnvironmentID = "global"

// Method is an HTTP verb supported by the explorer.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
	MethodHead    Method = "HEAD"
)

// Methods lists the supported verbs in display order.
var Methods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions,
}

// ParseMethod uppercases s and checks it against the supported verbs.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unsupported method %q", s)
}

func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// BodyType selects the shape of a request body.
type BodyType string

const (
	BodyNone       BodyType = "none"
	BodyFormData   BodyType = "form-data"
	BodyURLEncoded BodyType = "x-www-form-urlencoded"
	BodyRaw        BodyType = "raw"
	BodyBinary     BodyType = "binary"
	BodyGraphQL    BodyType = "GraphQL"
)

var bodyTypes = []BodyType{BodyNone, BodyFormData, BodyURLEncoded, BodyRaw, BodyBinary, BodyGraphQL}

func ParseBodyType(s string) (BodyType, error) {
	for _, bt := range bodyTypes {
		if strings.EqualFold(string(bt), strings.TrimSpace(s)) {
			return bt, nil
		}
	}
	return "", fmt.Errorf("unsupported body type %q", s)
}

func (bt BodyType) Valid() bool {
	_, err := ParseBodyType(string(bt))
	return err == nil && bt != ""
}

// IsForm reports whether the body type carries key/value fields.
func (bt BodyType) IsForm() bool {
	return bt == BodyFormData || bt == BodyURLEncoded
}

// RawType is the editor language of a raw body.
type RawType string

const (
	RawText       RawType = "Text"
	RawJavaScript RawType = "JavaScript"
	RawJSON       RawType = "JSON"
	RawHTML       RawType = "HTML"
	RawXML        RawType = "XML"
)

var rawTypes = []RawType{RawText, RawJavaScript, RawJSON, RawHTML, RawXML}

func ParseRawType(s string) (RawType, error) {
	for _, rt := range rawTypes {
		if strings.EqualFold(string(rt), strings.TrimSpace(s)) {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unsupported raw type %q", s)
}

// KeyValue is a header or query parameter row. Disabled rows are kept in
// the draft but never transmitted.
type KeyValue struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// EnabledOnly returns the rows that should be sent.
func EnabledOnly(rows []KeyValue) []KeyValue {
	out := make([]KeyValue, 0, len(rows))
	for _, row := range rows {
		if row.Enabled {
			out = append(out, row)
		}
	}
	return out
}

// Collection is a named, backend-owned group of requests.
type Collection struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Requests []Request `json:"requests" yaml:"requests"`
}

// Workspace scopes collections and history.
type Workspace struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId,omitempty"`
}

// Variable is one substitution pair of an environment.
type Variable struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Environment is a named, ordered list of variables.
type Environment struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Variables []Variable `json:"variables" yaml:"variables"`
}

// HistoryEntry is a frozen snapshot of a sent request.
type HistoryEntry struct {
	ID       string     `json:"id"`
	Method   Method     `json:"method"`
	URL      string     `json:"url"`
	Headers  []KeyValue `json:"headers"`
	Params   []KeyValue `json:"params"`
	BodyType BodyType   `json:"bodyType"`
	Body     Body       `json:"-"`
	RawType  RawType    `json:"rawType"`
	Auth     Auth       `json:"-"`
	Date     time.Time  `json:"date"`
}

// Snapshot freezes req into a history entry dated at.
func Snapshot(req *Request, at time.Time) HistoryEntry {
	c := req.Clone()
	return HistoryEntry{
		ID:       c.ID,
		Method:   c.Method,
		URL:      c.URL,
		Headers:  c.Headers,
		Params:   c.Params,
		BodyType: c.BodyType,
		Body:     c.Body,
		RawType:  c.RawType,
		Auth:     c.Auth,
		Date:     at,
	}
}

// Request rebuilds an editable draft from the snapshot.
func (h HistoryEntry) Request() *Request {
	req := &Request{
		ID:            h.ID,
		Name:          fmt.Sprintf("%s %s", h.Method, h.URL),
		Method:        h.Method,
		URL:           h.URL,
		Headers:       h.Headers,
		Params:        h.Params,
		BodyType:      h.BodyType,
		Body:          h.Body,
		RawType:       h.RawType,
		Auth:          h.Auth,
		EnvironmentID: GlobalEnvironmentID,
	}
	return req.Clone()
}

type historyEntryJSON struct {
	ID       string          `json:"id"`
	Method   Method          `json:"method"`
	URL      string          `json:"url"`
	Headers  []KeyValue      `json:"headers"`
	Params   []KeyValue      `json:"params"`
	Body     json.RawMessage `json:"body,omitempty"`
	BodyType BodyType        `json:"bodyType"`
	AuthType AuthType        `json:"authType"`
	AuthData json.RawMessage `json:"authData,omitempty"`
	RawType  RawType         `json:"rawType"`
	Date     time.Time       `json:"date"`
}

func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(bodyValue(h.Body))
	if err != nil {
		return nil, err
	}
	auth, err := json.Marshal(authValue(h.Auth))
	if err != nil {
		return nil, err
	}
	return json.Marshal(historyEntryJSON{
		ID:       h.ID,
		Method:   h.Method,
		URL:      h.URL,
		Headers:  nonNil(h.Headers),
		Params:   nonNil(h.Params),
		Body:     body,
		BodyType: h.BodyType,
		AuthType: AuthTypeOf(h.Auth),
		AuthData: auth,
		RawType:  h.RawType,
		Date:     h.Date,
	})
}

func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var w historyEntryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := decodeBody(w.BodyType, rawPresent(w.Body), jsonDecoder(w.Body))
	if err != nil {
		return err
	}
	auth, err := decodeAuth(w.AuthType, rawPresent(w.AuthData), jsonDecoder(w.AuthData))
	if err != nil {
		return err
	}
	*h = HistoryEntry{
		ID:       w.ID,
		Method:   w.Method,
		URL:      w.URL,
		Headers:  w.Headers,
		Params:   w.Params,
		BodyType: w.BodyType,
		Body:     body,
		RawType:  w.RawType,
		Auth:     auth,
		Date:     w.Date,
	}
	return nil
}

// backendID lets records written by a document store (which use "_id")
// decode into the same structs.
type backendID struct {
	ID    string `json:"id"`
	AltID string `json:"_id"`
}

func (b backendID) value() string {
	if b.ID != "" {
		return b.ID
	}
	return b.AltID
}

func (e *Environment) UnmarshalJSON(data []byte) error {
	type alias Environment
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var id backendID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	a.ID = id.value()
	*e = Environment(a)
	return nil
}

func (c *Collection) UnmarshalJSON(data []byte) error {
	type alias Collection
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var id backendID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	a.ID = id.value()
	*c = Collection(a)
	return nil
}

func (w *Workspace) UnmarshalJSON(data []byte) error {
	type alias Workspace
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var id backendID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	a.ID = id.value()
	*w = Workspace(a)
	return nil
}

func nonNil(rows []KeyValue) []KeyValue {
	if rows == nil {
		return []KeyValue{}
	}
	return rows
}
