package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/blackcoderx/apix/pkg/curl"
	"github.com/blackcoderx/apix/pkg/storage"
)

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"whole command", []string{"curl -X POST https://x.io"}, "curl -X POST https://x.io"},
		{"bare url", []string{"https://x.io"}, "curl https://x.io"},
		{"split words", []string{"curl", "-H", "Accept: text/plain", "https://x.io"}, "curl -H 'Accept: text/plain' https://x.io"},
		{"no curl word", []string{"-d", "a=1", "https://x.io"}, "curl -d a=1 https://x.io"},
		{"single quote", []string{"-d", "it's", "https://x.io"}, `curl -d 'it'\''s' https://x.io`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.want {
				t.Errorf("joinArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinArgs_ParsesBack(t *testing.T) {
	req, err := curl.ParseErr(joinArgs([]string{"-H", "X-Note: it's fine", "-d", `{"a":1}`, "https://x.io"}))
	if err != nil {
		t.Fatalf("ParseErr() error = %v", err)
	}
	if req.URL != "https://x.io" || req.Method != storage.MethodPost {
		t.Errorf("request = %s %s", req.Method, req.URL)
	}
	found := false
	for _, h := range req.Headers {
		if h.Name == "X-Note" && h.Value == "it's fine" {
			found = true
		}
	}
	if !found {
		t.Errorf("header lost: %+v", req.Headers)
	}
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		in, sep    string
		key, value string
		wantErr    bool
	}{
		{"a=b", "=", "a", "b", false},
		{" a =b=c", "=", "a", "b=c", false},
		{"user:pa:ss", ":", "user", "pa:ss", false},
		{"novalue", "=", "", "", true},
		{"=x", "=", "", "", true},
	}
	for _, tt := range tests {
		key, value, err := splitPair(tt.in, tt.sep)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitPair(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if key != tt.key || value != tt.value {
			t.Errorf("splitPair(%q) = %q, %q", tt.in, key, value)
		}
	}
}

func TestVariableIndex(t *testing.T) {
	env := storage.Environment{Variables: []storage.Variable{{Key: "a"}, {Key: "b"}}}
	tests := []struct {
		ref  string
		want int
	}{
		{"1", 1},
		{"b", 1},
		{"a", 0},
		{"zz", -1},
		{"7", 7},
	}
	for _, tt := range tests {
		if got := variableIndex(env, tt.ref); got != tt.want {
			t.Errorf("variableIndex(%q) = %d, want %d", tt.ref, got, tt.want)
		}
	}
}

func patchCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	addRequestFlags(cmd)
	for k, v := range flags {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatalf("set --%s: %v", k, err)
		}
	}
	return cmd
}

func TestRequestPatch(t *testing.T) {
	current := storage.NewRequest("request1", "r")

	p, err := requestPatch(patchCmd(t, map[string]string{
		"method": "post",
		"url":    "https://x.io",
		"body":   "hello",
		"basic":  "ada:pw",
	}), current)
	if err != nil {
		t.Fatalf("requestPatch() error = %v", err)
	}
	if p.Method == nil || *p.Method != storage.MethodPost {
		t.Errorf("Method = %v", p.Method)
	}
	if p.URL == nil || *p.URL != "https://x.io" {
		t.Errorf("URL = %v", p.URL)
	}
	if p.Name != nil || p.BodyType != nil {
		t.Errorf("unset flags leaked into patch: %+v", p)
	}
	if p.Auth != (storage.BasicAuth{Username: "ada", Password: "pw"}) {
		t.Errorf("Auth = %#v", p.Auth)
	}

	r := current.Clone()
	p.Apply(r)
	if r.Body != storage.TextBody("hello") {
		t.Errorf("Body = %#v", r.Body)
	}
}

func TestRequestPatch_BodyOnFormSwitchesToRaw(t *testing.T) {
	current := storage.NewRequest("request1", "r")
	current.WithBodyType(storage.BodyFormData)

	p, err := requestPatch(patchCmd(t, map[string]string{"body": "x"}), current)
	if err != nil {
		t.Fatalf("requestPatch() error = %v", err)
	}
	if p.BodyType == nil || *p.BodyType != storage.BodyRaw {
		t.Fatalf("BodyType = %v, want raw", p.BodyType)
	}
	r := current.Clone()
	p.Apply(r)
	if r.Body != storage.TextBody("x") {
		t.Errorf("Body = %#v", r.Body)
	}
}

func TestRequestPatch_Errors(t *testing.T) {
	current := storage.NewRequest("request1", "r")
	tests := []map[string]string{
		{"method": "FETCH"},
		{"body-type": "xml"},
		{"raw-type": "yaml"},
		{"auth": "digest"},
		{"apikey": "novalue"},
		{"apikey": "k=v", "apikey-in": "cookie"},
		{"body-file": "/does/not/exist"},
	}
	for _, flags := range tests {
		if _, err := requestPatch(patchCmd(t, flags), current); err == nil {
			t.Errorf("requestPatch(%v) expected error", flags)
		}
	}
}
