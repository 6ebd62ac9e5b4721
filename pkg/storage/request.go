package storage

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Request is an editable draft of an HTTP call.
type Request struct {
	ID            string
	Name          string
	Method        Method
	URL           string // may contain {{variable}} placeholders
	Headers       []KeyValue
	Params        []KeyValue
	BodyType      BodyType
	Body          Body
	RawType       RawType // meaningful only for BodyRaw
	Auth          Auth
	EnvironmentID string
}

// DefaultHeaders are attached to every new draft.
func DefaultHeaders() []KeyValue {
	return []KeyValue{
		{ID: "header1", Name: "Accept", Value: "application/json", Enabled: true},
		{ID: "header2", Name: "Content-Type", Value: "application/json", Enabled: true},
		{ID: "header3", Name: "Cache-Control", Value: "no-cache", Enabled: true},
		{ID: "header4", Name: "Accept-Encoding", Value: "gzip, deflate, br", Enabled: true},
		{ID: "header5", Name: "Connection", Value: "keep-alive", Enabled: true},
	}
}

// NewRequest returns the default draft: GET with the standard headers and an
// empty JSON body.
func NewRequest(id, name string) *Request {
	return &Request{
		ID:            id,
		Name:          name,
		Method:        MethodGet,
		Headers:       DefaultHeaders(),
		Params:        []KeyValue{},
		BodyType:      BodyRaw,
		Body:          TextBody(""),
		RawType:       RawJSON,
		EnvironmentID: GlobalEnvironmentID,
	}
}

// AuthType returns the discriminator of the request's credentials.
func (r *Request) AuthType() AuthType {
	return AuthTypeOf(r.Auth)
}

// Clone returns a deep copy; the copy shares no slices with r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = cloneRows(r.Headers)
	c.Params = cloneRows(r.Params)
	c.Body = cloneBody(r.Body)
	return &c
}

func cloneRows(rows []KeyValue) []KeyValue {
	if rows == nil {
		return nil
	}
	out := make([]KeyValue, len(rows))
	copy(out, rows)
	return out
}

// WithBodyType switches the body type, keeping the body only when its shape
// still fits and discarding it otherwise.
func (r *Request) WithBodyType(bt BodyType) {
	r.BodyType = bt
	if !BodyMatches(bt, r.Body) {
		r.Body = BodyForType(bt)
	}
}

// Validate checks the invariants every stored draft must hold.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id is required")
	}
	if !r.Method.Valid() {
		return fmt.Errorf("request %s: unsupported method %q", r.ID, r.Method)
	}
	if !r.BodyType.Valid() {
		return fmt.Errorf("request %s: unsupported body type %q", r.ID, r.BodyType)
	}
	if !BodyMatches(r.BodyType, r.Body) {
		return fmt.Errorf("request %s: body does not match body type %s", r.ID, r.BodyType)
	}
	if err := uniqueIDs("header", r.Headers); err != nil {
		return fmt.Errorf("request %s: %w", r.ID, err)
	}
	if err := uniqueIDs("param", r.Params); err != nil {
		return fmt.Errorf("request %s: %w", r.ID, err)
	}
	return nil
}

func uniqueIDs(kind string, rows []KeyValue) error {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			return fmt.Errorf("duplicate %s id %q", kind, row.ID)
		}
		seen[row.ID] = struct{}{}
	}
	return nil
}

// RequestPatch holds the fields an update merges into a draft. Nil fields
// are left untouched; pass an empty, non-nil slice to clear rows.
type RequestPatch struct {
	Name          *string
	Method        *Method
	URL           *string
	Headers       []KeyValue
	Params        []KeyValue
	BodyType      *BodyType
	Body          Body
	RawType       *RawType
	AuthType      *AuthType
	Auth          Auth
	EnvironmentID *string
}

// Apply merges p into r.
func (p RequestPatch) Apply(r *Request) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Method != nil {
		r.Method = *p.Method
	}
	if p.URL != nil {
		r.URL = *p.URL
	}
	if p.Headers != nil {
		r.Headers = cloneRows(p.Headers)
	}
	if p.Params != nil {
		r.Params = cloneRows(p.Params)
	}
	if p.BodyType != nil {
		r.WithBodyType(*p.BodyType)
	}
	if p.Body != nil && BodyMatches(r.BodyType, p.Body) {
		r.Body = cloneBody(p.Body)
	}
	if p.RawType != nil {
		r.RawType = *p.RawType
	}
	if p.AuthType != nil && *p.AuthType != r.AuthType() {
		r.Auth = EmptyAuth(*p.AuthType)
	}
	if p.Auth != nil {
		r.Auth = p.Auth
	}
	if p.EnvironmentID != nil {
		r.EnvironmentID = *p.EnvironmentID
	}
}

// requestWire is the flat record exchanged with the backend and written to
// collection files.
type requestWire struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Method        Method          `json:"method"`
	URL           string          `json:"url"`
	Headers       []KeyValue      `json:"headers"`
	Params        []KeyValue      `json:"params"`
	BodyType      BodyType        `json:"bodyType"`
	Body          json.RawMessage `json:"body,omitempty"`
	RawType       RawType         `json:"rawType,omitempty"`
	AuthType      AuthType        `json:"authType"`
	AuthData      json.RawMessage `json:"authData,omitempty"`
	EnvironmentID string          `json:"environmentId,omitempty"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(bodyValue(r.Body))
	if err != nil {
		return nil, err
	}
	auth, err := json.Marshal(authValue(r.Auth))
	if err != nil {
		return nil, err
	}
	return json.Marshal(requestWire{
		ID:            r.ID,
		Name:          r.Name,
		Method:        r.Method,
		URL:           r.URL,
		Headers:       nonNil(r.Headers),
		Params:        nonNil(r.Params),
		BodyType:      r.BodyType,
		Body:          body,
		RawType:       r.RawType,
		AuthType:      r.AuthType(),
		AuthData:      auth,
		EnvironmentID: r.EnvironmentID,
	})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var id backendID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	w.ID = id.value()
	return r.fromWire(w, rawPresent(w.Body), jsonDecoder(w.Body), rawPresent(w.AuthData), jsonDecoder(w.AuthData))
}

func (r *Request) fromWire(w requestWire, hasBody bool, body func(any) error, hasAuth bool, auth func(any) error) error {
	if w.BodyType == "" {
		w.BodyType = BodyNone
	}
	b, err := decodeBody(w.BodyType, hasBody, body)
	if err != nil {
		return fmt.Errorf("request %s: %w", w.ID, err)
	}
	a, err := decodeAuth(w.AuthType, hasAuth, auth)
	if err != nil {
		return fmt.Errorf("request %s: %w", w.ID, err)
	}
	env := w.EnvironmentID
	if env == "" {
		env = GlobalEnvironmentID
	}
	rawType := w.RawType
	if rawType == "" {
		rawType = RawText
	}
	*r = Request{
		ID:            w.ID,
		Name:          w.Name,
		Method:        w.Method,
		URL:           w.URL,
		Headers:       w.Headers,
		Params:        w.Params,
		BodyType:      w.BodyType,
		Body:          b,
		RawType:       rawType,
		Auth:          a,
		EnvironmentID: env,
	}
	return nil
}

// requestYAML mirrors requestWire for the draft snapshot file.
type requestYAML struct {
	ID            string     `yaml:"id"`
	Name          string     `yaml:"name"`
	Method        Method     `yaml:"method"`
	URL           string     `yaml:"url"`
	Headers       []KeyValue `yaml:"headers,omitempty"`
	Params        []KeyValue `yaml:"params,omitempty"`
	BodyType      BodyType   `yaml:"bodyType"`
	Body          yaml.Node  `yaml:"body,omitempty"`
	RawType       RawType    `yaml:"rawType,omitempty"`
	AuthType      AuthType   `yaml:"authType"`
	AuthData      yaml.Node  `yaml:"authData,omitempty"`
	EnvironmentID string     `yaml:"environmentId,omitempty"`
}

func (r Request) MarshalYAML() (any, error) {
	out := struct {
		ID            string     `yaml:"id"`
		Name          string     `yaml:"name"`
		Method        Method     `yaml:"method"`
		URL           string     `yaml:"url"`
		Headers       []KeyValue `yaml:"headers,omitempty"`
		Params        []KeyValue `yaml:"params,omitempty"`
		BodyType      BodyType   `yaml:"bodyType"`
		Body          any        `yaml:"body,omitempty"`
		RawType       RawType    `yaml:"rawType,omitempty"`
		AuthType      AuthType   `yaml:"authType"`
		AuthData      any        `yaml:"authData,omitempty"`
		EnvironmentID string     `yaml:"environmentId,omitempty"`
	}{
		ID:            r.ID,
		Name:          r.Name,
		Method:        r.Method,
		URL:           r.URL,
		Headers:       r.Headers,
		Params:        r.Params,
		BodyType:      r.BodyType,
		Body:          bodyValue(r.Body),
		RawType:       r.RawType,
		AuthType:      r.AuthType(),
		EnvironmentID: r.EnvironmentID,
	}
	if r.Auth != nil {
		out.AuthData = r.Auth
	}
	return out, nil
}

func (r *Request) UnmarshalYAML(node *yaml.Node) error {
	var y requestYAML
	if err := node.Decode(&y); err != nil {
		return err
	}
	w := requestWire{
		ID:            y.ID,
		Name:          y.Name,
		Method:        y.Method,
		URL:           y.URL,
		Headers:       y.Headers,
		Params:        y.Params,
		BodyType:      y.BodyType,
		RawType:       y.RawType,
		AuthType:      y.AuthType,
		EnvironmentID: y.EnvironmentID,
	}
	if w.Headers == nil {
		w.Headers = []KeyValue{}
	}
	if w.Params == nil {
		w.Params = []KeyValue{}
	}
	return r.fromWire(w, !y.Body.IsZero(), y.Body.Decode, !y.AuthData.IsZero(), y.AuthData.Decode)
}

// ProxyPayload is the body posted to the proxy for one send.
type ProxyPayload struct {
	Method   Method     `json:"method"`
	URL      string     `json:"url"`
	Headers  []KeyValue `json:"headers"`
	Params   []KeyValue `json:"params"`
	Body     any        `json:"body"`
	BodyType BodyType   `json:"bodyType"`
	AuthType AuthType   `json:"authType"`
	AuthData any        `json:"authData"`
}

// NewProxyPayload builds the proxy body for an already resolved request.
// Disabled header and param rows are left out.
func NewProxyPayload(req *Request) ProxyPayload {
	body := bodyValue(req.Body)
	if body == nil {
		body = ""
	}
	return ProxyPayload{
		Method:   req.Method,
		URL:      req.URL,
		Headers:  EnabledOnly(req.Headers),
		Params:   EnabledOnly(req.Params),
		Body:     body,
		BodyType: req.BodyType,
		AuthType: req.AuthType(),
		AuthData: authValue(req.Auth),
	}
}
