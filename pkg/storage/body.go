package storage

import (
	"encoding/json"
	"fmt"
)

// Body is the payload of a request. Its concrete type must agree with the
// request's BodyType:
//
//	none                         -> nil
//	form-data, x-www-form-urlencoded -> FormBody
//	raw, GraphQL                 -> TextBody
//	binary                       -> FileBody
type Body interface {
	isBody()
}

// TextBody is a raw or GraphQL payload.
type TextBody string

// FormBody is an ordered list of form fields.
type FormBody []FormField

// FileBody references the single file sent as a binary body.
type FileBody struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (TextBody) isBody() {}
func (FormBody) isBody() {}
func (FileBody) isBody() {}

// FieldType tells whether a form field holds text or a file reference.
type FieldType string

const (
	FieldText FieldType = "text"
	FieldFile FieldType = "file"
)

// FormField is one row of a form body.
type FormField struct {
	ID    string    `json:"id" yaml:"id"`
	Key   string    `json:"key" yaml:"key"`
	Value string    `json:"value" yaml:"value"`
	Type  FieldType `json:"type" yaml:"type"`
}

// BodyForType returns the empty body of the shape bt expects.
func BodyForType(bt BodyType) Body {
	switch bt {
	case BodyFormData, BodyURLEncoded:
		return FormBody{}
	case BodyRaw, BodyGraphQL:
		return TextBody("")
	case BodyBinary:
		return FileBody{}
	default:
		return nil
	}
}

// BodyMatches reports whether b has the shape bt expects.
func BodyMatches(bt BodyType, b Body) bool {
	switch b.(type) {
	case nil:
		return bt == BodyNone
	case TextBody:
		return bt == BodyRaw || bt == BodyGraphQL
	case FormBody:
		return bt.IsForm()
	case FileBody:
		return bt == BodyBinary
	default:
		return false
	}
}

func cloneBody(b Body) Body {
	if form, ok := b.(FormBody); ok {
		out := make(FormBody, len(form))
		copy(out, form)
		return out
	}
	return b
}

// bodyValue maps the union onto the plain value used on the wire.
func bodyValue(b Body) any {
	switch v := b.(type) {
	case TextBody:
		return string(v)
	case FormBody:
		if v == nil {
			return []FormField{}
		}
		return []FormField(v)
	case FileBody:
		return v
	default:
		return nil
	}
}

// decodeBody rebuilds the union from a wire value. Empty strings and nulls
// are accepted for every shape because drafts created by older clients
// always carried body "".
func decodeBody(bt BodyType, present bool, decode func(any) error) (Body, error) {
	if !present || bt == BodyNone || bt == "" {
		return BodyForType(bt), nil
	}
	switch bt {
	case BodyRaw, BodyGraphQL:
		var s string
		if err := decode(&s); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", bt, err)
		}
		return TextBody(s), nil
	case BodyFormData, BodyURLEncoded:
		var fields []FormField
		if err := decode(&fields); err != nil {
			if emptyValue(decode) {
				return FormBody{}, nil
			}
			return nil, fmt.Errorf("decode %s body: %w", bt, err)
		}
		return FormBody(fields), nil
	case BodyBinary:
		var f FileBody
		if err := decode(&f); err != nil {
			if emptyValue(decode) {
				return FileBody{}, nil
			}
			return nil, fmt.Errorf("decode binary body: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported body type %q", bt)
	}
}

func emptyValue(decode func(any) error) bool {
	var s string
	return decode(&s) == nil && s == ""
}

func jsonDecoder(raw json.RawMessage) func(any) error {
	return func(v any) error {
		return json.Unmarshal(raw, v)
	}
}

func rawPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
