// Package curl turns a pasted cURL command line into a request draft.
package curl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/blackcoderx/apix/pkg/storage"
)

// ErrNotCurl is returned when the command does not start with curl.
var ErrNotCurl = errors.New("not a curl command")

type parseState struct {
	req                *storage.Request
	urlSet             bool
	hasData            bool
	data               string
	defaultContentType bool
}

func (st *parseState) addHeader(name, value string) {
	st.req.Headers = append(st.req.Headers, storage.KeyValue{
		ID:      fmt.Sprintf("header%d", len(st.req.Headers)+1),
		Name:    name,
		Value:   value,
		Enabled: true,
	})
}

// setHeader appends a header given on the command line. An explicit
// Content-Type replaces the one injected for a data flag.
func (st *parseState) setHeader(name, value string) {
	if st.defaultContentType && strings.EqualFold(name, "Content-Type") {
		st.header("Content-Type").Value = value
		st.defaultContentType = false
		return
	}
	st.addHeader(name, value)
}

func (st *parseState) hasHeader(name string) bool {
	return st.header(name) != nil
}

func (st *parseState) header(name string) *storage.KeyValue {
	for i := range st.req.Headers {
		if strings.EqualFold(st.req.Headers[i].Name, name) {
			return &st.req.Headers[i]
		}
	}
	return nil
}

func newRequest() *storage.Request {
	return &storage.Request{
		Method:        storage.MethodGet,
		Headers:       []storage.KeyValue{},
		Params:        []storage.KeyValue{},
		BodyType:      storage.BodyNone,
		RawType:       storage.RawText,
		EnvironmentID: storage.GlobalEnvironmentID,
	}
}

// Parse returns the request described by command, or nil when the command
// cannot be parsed. It never panics.
func Parse(command string) *storage.Request {
	req, err := ParseErr(command)
	if err != nil {
		return nil
	}
	return req
}

// ParseErr is Parse with the reason for a failure. The returned request has
// no id or name; callers assign them when storing it.
func ParseErr(command string) (req *storage.Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			req, err = nil, fmt.Errorf("parse curl command: %v", r)
		}
	}()

	tokens, err := splitTokens(strings.TrimSpace(command))
	if err != nil {
		return nil, fmt.Errorf("parse curl command: %w", err)
	}
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "curl") {
		return nil, ErrNotCurl
	}

	st := &parseState{req: newRequest()}
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if !isFlag(tok) {
			if !st.urlSet {
				st.req.URL = tok.text
				st.urlSet = true
			}
			continue
		}

		def, name, inline, hasInline := lookup(tok.text)
		if def == nil {
			// unknown flag: take a value if one follows
			if i+1 < len(tokens) && !isFlag(tokens[i+1]) {
				i++
			}
			continue
		}
		value := inline
		if def.kind == optVal && !hasInline {
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("parse curl command: %s requires a value", name)
			}
			i++
			value = tokens[i].text
		}
		if def.fn == nil {
			continue
		}
		if err := def.fn(st, value); err != nil {
			return nil, fmt.Errorf("parse curl command: %s: %w", name, err)
		}
	}

	if !st.urlSet || st.req.URL == "" {
		return nil, fmt.Errorf("parse curl command: no URL")
	}
	st.finish()
	return st.req, nil
}

func isFlag(tok token) bool {
	return !tok.quoted && len(tok.text) > 1 && strings.HasPrefix(tok.text, "-")
}

func (st *parseState) finish() {
	req := st.req

	if st.hasData {
		req.Body = storage.TextBody(st.data)
	} else {
		req.Body = storage.BodyForType(req.BodyType)
	}

	if strings.Contains(req.URL, "?") {
		req.URL, req.Params = storage.ParamsFromURL(req.URL)
	}

	if ct := st.header("Content-Type"); ct != nil {
		req.RawType = rawTypeFor(ct.Value)
	}
	if req.RawType == storage.RawJSON && st.data != "" && !json.Valid([]byte(st.data)) {
		req.RawType = storage.RawText
	}
}

// rawTypeFor maps a Content-Type value onto an editor language. The checks
// run in a fixed order, so "text/html" is Text.
func rawTypeFor(contentType string) storage.RawType {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return storage.RawJSON
	case strings.Contains(ct, "xml"):
		return storage.RawXML
	case strings.Contains(ct, "text"):
		return storage.RawText
	case strings.Contains(ct, "javascript"):
		return storage.RawJavaScript
	case strings.Contains(ct, "html"):
		return storage.RawHTML
	default:
		return storage.RawText
	}
}
