package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// varPattern matches any {{name}} placeholder.
var varPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ResolveError reports that substitution was aborted. The request returned
// alongside it is the original, unsubstituted one.
type ResolveError struct {
	RequestID string
	Err       error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve variables for request %s: %v", e.RequestID, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Placeholders lists the distinct variable names referenced in text, in
// order of first appearance.
func Placeholders(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range varPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// SelectEnvironment picks the environment with the given id, falling back
// to the global one and then to an empty environment.
func SelectEnvironment(envs []Environment, id string) Environment {
	if id == "" {
		id = GlobalEnvironmentID
	}
	var global *Environment
	for i := range envs {
		if envs[i].ID == id {
			return envs[i]
		}
		if envs[i].ID == GlobalEnvironmentID && global == nil {
			global = &envs[i]
		}
	}
	if global != nil {
		return *global
	}
	return Environment{ID: GlobalEnvironmentID, Name: "Global", Variables: []Variable{}}
}

// substituter replaces each {{key}} with its value, variables applied in
// order. A key listed twice resolves to its first value because the first
// pass leaves no token for the second.
type substituter struct {
	patterns []*regexp.Regexp
	values   []string
}

func newSubstituter(vars []Variable) (*substituter, error) {
	s := &substituter{
		patterns: make([]*regexp.Regexp, 0, len(vars)),
		values:   make([]string, 0, len(vars)),
	}
	for _, v := range vars {
		re, err := regexp.Compile(`\{\{` + regexp.QuoteMeta(v.Key) + `\}\}`)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Key, err)
		}
		s.patterns = append(s.patterns, re)
		s.values = append(s.values, v.Value)
	}
	return s, nil
}

func (s *substituter) apply(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	for i, re := range s.patterns {
		text = re.ReplaceAllLiteralString(text, s.values[i])
	}
	return text
}

// SubstituteVariables replaces {{key}} placeholders in text with the values
// of vars. Unknown placeholders are left as they are.
func SubstituteVariables(text string, vars []Variable) (string, error) {
	s, err := newSubstituter(vars)
	if err != nil {
		return text, err
	}
	return s.apply(text), nil
}

// ApplyEnvironment returns a copy of req with the variables of its
// environment substituted into the URL, header values and body. Header
// names, param rows and form field keys are not touched. req and envs are
// never modified.
//
// If substitution fails the original request is returned with a
// *ResolveError; a partially substituted request is never returned.
func ApplyEnvironment(req *Request, envs []Environment) (out *Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = req
			err = &ResolveError{RequestID: req.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	env := SelectEnvironment(envs, req.EnvironmentID)
	s, err := newSubstituter(env.Variables)
	if err != nil {
		return req, &ResolveError{RequestID: req.ID, Err: err}
	}

	applied := req.Clone()
	applied.URL = s.apply(applied.URL)
	for i := range applied.Headers {
		applied.Headers[i].Value = s.apply(applied.Headers[i].Value)
	}
	switch body := applied.Body.(type) {
	case TextBody:
		applied.Body = TextBody(s.apply(string(body)))
	case FormBody:
		for i := range body {
			body[i].Value = s.apply(body[i].Value)
		}
	}
	return applied, nil
}
