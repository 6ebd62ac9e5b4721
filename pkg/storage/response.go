package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Response is what the proxy returns for one outbound call.
type Response struct {
	StatusCode   int          `json:"statusCode"`
	StatusText   string       `json:"statusText"`
	ResponseTime int64        `json:"responseTime"` // milliseconds
	Headers      Fields       `json:"headers"`
	Body         ResponseBody `json:"body"`
	Cookies      Fields       `json:"cookies,omitempty"`
	Size         int64        `json:"size"`
}

// ErrorResponse is the synthetic response stored when a send fails.
func ErrorResponse(msg string) Response {
	return Response{
		StatusCode: 0,
		StatusText: "Error",
		Headers:    Fields{},
		Body:       ResponseBody(msg),
	}
}

// IsError reports whether r is a synthetic failure.
func (r Response) IsError() bool {
	return r.StatusCode == 0
}

// ResponseBody is the response payload as text. The proxy sends either a
// string or an already decoded JSON value; the latter is kept as its JSON
// encoding.
type ResponseBody string

func (b ResponseBody) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(b))
}

func (b *ResponseBody) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = ResponseBody(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*b = ResponseBody(buf.String())
	return nil
}

// IsJSON reports whether the body parses as JSON.
func (b ResponseBody) IsJSON() bool {
	return json.Valid([]byte(b))
}

// Pretty returns the body indented when it is JSON, unchanged otherwise.
func (b ResponseBody) Pretty() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(b), "", "  "); err != nil {
		return string(b)
	}
	return buf.String()
}

// Fields is a header or cookie map. Non-string values sent by the proxy
// (numbers, arrays for repeated headers) are flattened to text.
type Fields map[string]string

func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = fieldText(v)
	}
	*f = out
	return nil
}

// Keys returns the field names sorted.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		var buf bytes.Buffer
		for i, item := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(fieldText(item))
		}
		return buf.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// ResponseSet holds every step the proxy reported for one send, such as a
// redirect chain, and which of them is being viewed.
type ResponseSet struct {
	Responses []Response `json:"responses"`
	Selected  int        `json:"selected"`
}

// SingleResponse wraps one response.
func SingleResponse(r Response) ResponseSet {
	return ResponseSet{Responses: []Response{r}}
}

// Len returns the number of steps.
func (s ResponseSet) Len() int {
	return len(s.Responses)
}

// Current returns the selected step.
func (s ResponseSet) Current() (Response, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Responses) {
		return Response{}, false
	}
	return s.Responses[s.Selected], true
}

// Select returns a copy of s viewing step i.
func (s ResponseSet) Select(i int) (ResponseSet, error) {
	if i < 0 || i >= len(s.Responses) {
		return s, fmt.Errorf("response index %d out of range [0,%d)", i, len(s.Responses))
	}
	s.Selected = i
	return s, nil
}

// DecodeResponses accepts a single response object or an array of them.
// Arrays select their last step, the final hop of a chain.
func DecodeResponses(data []byte) (ResponseSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ResponseSet{}, fmt.Errorf("empty response")
	}
	if data[0] == '[' {
		var list []Response
		if err := json.Unmarshal(data, &list); err != nil {
			return ResponseSet{}, fmt.Errorf("decode response list: %w", err)
		}
		if len(list) == 0 {
			return ResponseSet{}, fmt.Errorf("empty response list")
		}
		return ResponseSet{Responses: list, Selected: len(list) - 1}, nil
	}
	if data[0] != '{' {
		return ResponseSet{}, fmt.Errorf("response is not an object")
	}
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return ResponseSet{}, fmt.Errorf("decode response: %w", err)
	}
	if _, ok := shape["statusCode"]; !ok {
		return ResponseSet{}, fmt.Errorf("response has no statusCode")
	}
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return ResponseSet{}, fmt.Errorf("decode response: %w", err)
	}
	return SingleResponse(r), nil
}
