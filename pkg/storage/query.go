package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// ParamsFromURL splits the query string off raw and returns the base URL and
// the decoded parameters, enabled and numbered param1, param2, ... in order.
func ParamsFromURL(raw string) (string, []KeyValue) {
	base, query, found := strings.Cut(raw, "?")
	params := []KeyValue{}
	if !found {
		return raw, params
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		params = append(params, KeyValue{
			ID:      fmt.Sprintf("param%d", len(params)+1),
			Name:    unescapeQuery(name),
			Value:   unescapeQuery(value),
			Enabled: true,
		})
	}
	return base, params
}

func unescapeQuery(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// URLWithParams appends the enabled params to base as a query string.
func URLWithParams(base string, params []KeyValue) string {
	var b strings.Builder
	b.WriteString(base)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	for _, p := range params {
		if !p.Enabled || p.Name == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
		sep = "&"
	}
	return b.String()
}
