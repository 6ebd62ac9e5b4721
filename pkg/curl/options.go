package curl

import (
	"fmt"
	"strings"

	"github.com/blackcoderx/apix/pkg/storage"
)

type optKind int

const (
	optNone optKind = iota
	optVal
)

type optFn func(*parseState, string) error

type optDef struct {
	kind optKind
	fn   optFn
}

// defs maps every recognised spelling to its handler. Flags not listed here
// take the next word as their value unless it looks like a flag. Entries
// without a handler are switches that only need to be skipped; -G and -I
// are among them, so only -X changes the method.
var defs = map[string]*optDef{
	"-X":             {kind: optVal, fn: optMethod},
	"--request":      {kind: optVal, fn: optMethod},
	"-H":             {kind: optVal, fn: optHeader},
	"--header":       {kind: optVal, fn: optHeader},
	"-d":             {kind: optVal, fn: optData},
	"--data":         {kind: optVal, fn: optData},
	"--data-raw":     {kind: optVal, fn: optData},
	"--data-binary":  {kind: optVal, fn: optData},
	"--data-ascii":   {kind: optVal, fn: optData},
	"--json":         {kind: optVal, fn: optJSON},
	"-u":             {kind: optVal, fn: optUser},
	"--user":         {kind: optVal, fn: optUser},
	"--url":          {kind: optVal, fn: optURL},
	"-A":             {kind: optVal, fn: optHeaderKey("User-Agent")},
	"--user-agent":   {kind: optVal, fn: optHeaderKey("User-Agent")},
	"-e":             {kind: optVal, fn: optHeaderKey("Referer")},
	"--referer":      {kind: optVal, fn: optHeaderKey("Referer")},
	"-b":             {kind: optVal, fn: optHeaderKey("Cookie")},
	"--cookie":       {kind: optVal, fn: optHeaderKey("Cookie")},
	"-G":             {kind: optNone},
	"--get":          {kind: optNone},
	"-I":             {kind: optNone},
	"--head":         {kind: optNone},
	"-s":             {kind: optNone},
	"--silent":       {kind: optNone},
	"-S":             {kind: optNone},
	"--show-error":   {kind: optNone},
	"-L":             {kind: optNone},
	"--location":     {kind: optNone},
	"-k":             {kind: optNone},
	"--insecure":     {kind: optNone},
	"-i":             {kind: optNone},
	"--include":      {kind: optNone},
	"-v":             {kind: optNone},
	"--verbose":      {kind: optNone},
	"-f":             {kind: optNone},
	"--fail":         {kind: optNone},
	"--compressed":   {kind: optNone},
	"--http1.1":      {kind: optNone},
	"--http2":        {kind: optNone},
	"--globoff":      {kind: optNone},
	"-g":             {kind: optNone},
	"--no-buffer":    {kind: optNone},
	"-N":             {kind: optNone},
	"--progress-bar": {kind: optNone},
	"-#":             {kind: optNone},
}

// lookup resolves a flag word to its definition, splitting --name=value and
// attached short values such as -XPOST. A cluster of boolean short flags
// (-sSL) resolves to a no-op.
func lookup(word string) (def *optDef, name string, inline string, hasInline bool) {
	if d, ok := defs[word]; ok {
		return d, word, "", false
	}
	if strings.HasPrefix(word, "--") {
		if k, v, ok := strings.Cut(word, "="); ok {
			if d, found := defs[k]; found {
				return d, k, v, true
			}
		}
		return nil, word, "", false
	}
	if len(word) > 2 {
		short := word[:2]
		if d, ok := defs[short]; ok && d.kind == optVal {
			return d, short, word[2:], true
		}
		if booleanCluster(word[1:]) {
			return &optDef{kind: optNone}, word, "", false
		}
	}
	return nil, word, "", false
}

func booleanCluster(letters string) bool {
	for _, c := range letters {
		d, ok := defs["-"+string(c)]
		if !ok || d.kind != optNone {
			return false
		}
	}
	return true
}

func optMethod(st *parseState, v string) error {
	m, err := storage.ParseMethod(v)
	if err != nil {
		return err
	}
	st.req.Method = m
	return nil
}

func optHeader(st *parseState, v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok {
		return nil
	}
	st.setHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	return nil
}

func optHeaderKey(name string) optFn {
	return func(st *parseState, v string) error {
		st.setHeader(name, v)
		return nil
	}
}

var dataUnescaper = strings.NewReplacer(`\"`, `"`, `\'`, `'`)

func optData(st *parseState, v string) error {
	v = dataUnescaper.Replace(v)
	if st.hasData {
		// curl joins repeated data arguments with '&'
		st.data += "&" + v
	} else {
		st.data = v
	}
	st.hasData = true
	st.req.BodyType = storage.BodyRaw
	if st.req.Method == storage.MethodGet {
		st.req.Method = storage.MethodPost
	}
	if !st.hasHeader("Content-Type") {
		st.addHeader("Content-Type", "application/x-www-form-urlencoded")
		st.defaultContentType = true
	}
	return nil
}

func optJSON(st *parseState, v string) error {
	if !st.hasHeader("Content-Type") {
		st.addHeader("Content-Type", "application/json")
	}
	if !st.hasHeader("Accept") {
		st.addHeader("Accept", "application/json")
	}
	return optData(st, v)
}

func optUser(st *parseState, v string) error {
	user, pass, _ := strings.Cut(v, ":")
	st.req.Auth = storage.BasicAuth{Username: user, Password: pass}
	return nil
}

func optURL(st *parseState, v string) error {
	if v == "" {
		return fmt.Errorf("empty --url")
	}
	st.req.URL = v
	st.urlSet = true
	return nil
}
