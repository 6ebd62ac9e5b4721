package curl

import (
	"errors"
	"reflect"
	"testing"

	"github.com/blackcoderx/apix/pkg/storage"
)

func TestParse_PostJSON(t *testing.T) {
	req := Parse(`curl -X POST https://api.test/x -H "Content-Type: application/json" -d '{"a":1}'`)
	if req == nil {
		t.Fatal("expected a request")
	}

	if req.Method != storage.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL != "https://api.test/x" {
		t.Errorf("url = %q", req.URL)
	}
	wantHeaders := []storage.KeyValue{{ID: "header1", Name: "Content-Type", Value: "application/json", Enabled: true}}
	if !reflect.DeepEqual(req.Headers, wantHeaders) {
		t.Errorf("headers = %+v", req.Headers)
	}
	if req.Body != storage.TextBody(`{"a":1}`) {
		t.Errorf("body = %#v", req.Body)
	}
	if req.BodyType != storage.BodyRaw || req.RawType != storage.RawJSON {
		t.Errorf("body type = %s/%s, want raw/JSON", req.BodyType, req.RawType)
	}
	if req.Auth != nil {
		t.Errorf("auth = %#v, want none", req.Auth)
	}
}

func TestParse_Method(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want storage.Method
	}{
		{"plain get", "curl https://a.io", storage.MethodGet},
		{"lowercase -X is uppercased", "curl -X delete https://a.io", storage.MethodDelete},
		{"long form", "curl --request patch https://a.io", storage.MethodPatch},
		{"attached value", "curl -XPUT https://a.io", storage.MethodPut},
		{"equals form", "curl --request=OPTIONS https://a.io", storage.MethodOptions},
		{"data without -X upgrades to POST", "curl https://a.io -d x=1", storage.MethodPost},
		{"data keeps earlier PUT", "curl -X PUT https://a.io -d x=1", storage.MethodPut},
		{"data keeps later PUT", "curl https://a.io -d x=1 -X PUT", storage.MethodPut},
		{"head switch alone keeps GET", "curl -I https://a.io", storage.MethodGet},
		{"data with -G still upgrades to POST", "curl -G https://x.test -d a=1", storage.MethodPost},
		{"data with -I still upgrades to POST", "curl -I https://x.test -d a=1", storage.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseErr(tt.cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Method != tt.want {
				t.Errorf("method = %s, want %s", req.Method, tt.want)
			}
		})
	}
}

func TestParse_QueryParams(t *testing.T) {
	req := Parse(`curl "https://a.io/search?q=hello%20world&page=2"`)
	if req == nil {
		t.Fatal("expected a request")
	}
	if req.URL != "https://a.io/search" {
		t.Errorf("url = %q", req.URL)
	}
	want := []storage.KeyValue{
		{ID: "param1", Name: "q", Value: "hello world", Enabled: true},
		{ID: "param2", Name: "page", Value: "2", Enabled: true},
	}
	if !reflect.DeepEqual(req.Params, want) {
		t.Errorf("params = %+v", req.Params)
	}
}

func TestParse_SwitchesKeepDataInBody(t *testing.T) {
	for _, cmd := range []string{
		`curl -G https://a.io/s -d q=go`,
		`curl --head https://a.io/s -d q=go`,
	} {
		req := Parse(cmd)
		if req == nil {
			t.Fatalf("%s: expected a request", cmd)
		}
		if req.Method != storage.MethodPost {
			t.Errorf("%s: method = %s, want POST", cmd, req.Method)
		}
		if req.BodyType != storage.BodyRaw || req.Body != storage.TextBody("q=go") {
			t.Errorf("%s: body = %s %#v, want raw q=go", cmd, req.BodyType, req.Body)
		}
		if req.URL != "https://a.io/s" || len(req.Params) != 0 {
			t.Errorf("%s: url = %q params = %+v", cmd, req.URL, req.Params)
		}
	}
}

func TestParse_Headers(t *testing.T) {
	req := Parse(`curl https://a.io -H 'Referer: https://b.io:8080/x' -H "X-Empty" -H "Accept:text/plain"`)
	if req == nil {
		t.Fatal("expected a request")
	}
	want := []storage.KeyValue{
		{ID: "header1", Name: "Referer", Value: "https://b.io:8080/x", Enabled: true},
		{ID: "header2", Name: "Accept", Value: "text/plain", Enabled: true},
	}
	if !reflect.DeepEqual(req.Headers, want) {
		t.Errorf("headers = %+v", req.Headers)
	}
}

func TestParse_DataDefaults(t *testing.T) {
	req := Parse(`curl https://a.io -d "name=x"`)
	if req == nil {
		t.Fatal("expected a request")
	}
	if len(req.Headers) != 1 || req.Headers[0].Value != "application/x-www-form-urlencoded" {
		t.Errorf("headers = %+v", req.Headers)
	}
	if req.RawType != storage.RawText {
		t.Errorf("raw type = %s, want Text", req.RawType)
	}
}

func TestParse_InvalidJSONDowngrades(t *testing.T) {
	req := Parse(`curl https://a.io -H "Content-Type: application/json" -d '{bad'`)
	if req == nil {
		t.Fatal("expected a request")
	}
	if req.RawType != storage.RawText {
		t.Errorf("raw type = %s, want Text", req.RawType)
	}
	if req.Body != storage.TextBody("{bad") {
		t.Errorf("body = %#v", req.Body)
	}
}

func TestParse_RawTypeInference(t *testing.T) {
	tests := []struct {
		contentType string
		want        storage.RawType
	}{
		{"application/xml", storage.RawXML},
		{"text/html", storage.RawText},
		{"application/javascript", storage.RawJavaScript},
		{"application/xhtml", storage.RawHTML},
		{"application/octet-stream", storage.RawText},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req := Parse(`curl https://a.io -H "Content-Type: ` + tt.contentType + `" -d x`)
			if req == nil {
				t.Fatal("expected a request")
			}
			if req.RawType != tt.want {
				t.Errorf("raw type = %s, want %s", req.RawType, tt.want)
			}
		})
	}
}

func TestParse_BasicAuth(t *testing.T) {
	tests := []struct {
		cmd  string
		want storage.BasicAuth
	}{
		{"curl -u user:pass https://a.io", storage.BasicAuth{Username: "user", Password: "pass"}},
		{"curl --user user https://a.io", storage.BasicAuth{Username: "user"}},
		{"curl -u 'user:p:w' https://a.io", storage.BasicAuth{Username: "user", Password: "p:w"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			req := Parse(tt.cmd)
			if req == nil {
				t.Fatal("expected a request")
			}
			if req.Auth != tt.want {
				t.Errorf("auth = %#v, want %#v", req.Auth, tt.want)
			}
		})
	}
}

func TestParse_URLSelection(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{"first bare word", "curl https://a.io https://b.io", "https://a.io"},
		{"url flag overrides", "curl https://a.io --url https://b.io", "https://b.io"},
		{"boolean flags do not swallow url", "curl -sSL https://a.io", "https://a.io"},
		{"unknown flag takes its value", "curl --max-time 5 https://a.io", "https://a.io"},
		{"unknown flag before flag is boolean", "curl --fail-early -k https://a.io", "https://a.io"},
		{"line continuation", "curl \\\n  https://a.io \\\n  -X GET", "https://a.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseErr(tt.cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.URL != tt.want {
				t.Errorf("url = %q, want %q", req.URL, tt.want)
			}
		})
	}
}

func TestParse_EscapedQuotesInData(t *testing.T) {
	req := Parse(`curl https://a.io -d '{\"a\":\"b\"}' -H 'Content-Type: application/json'`)
	if req == nil {
		t.Fatal("expected a request")
	}
	if req.Body != storage.TextBody(`{"a":"b"}`) {
		t.Errorf("body = %#v", req.Body)
	}
	if req.RawType != storage.RawJSON {
		t.Errorf("raw type = %s, want JSON", req.RawType)
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{"empty", ""},
		{"not curl", "wget https://a.io"},
		{"unterminated quote", `curl "https://a.io`},
		{"flag without value", "curl https://a.io -H"},
		{"unknown method", "curl -X BREW https://a.io"},
		{"no url", "curl -X GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if req := Parse(tt.cmd); req != nil {
				t.Errorf("Parse(%q) = %+v, want nil", tt.cmd, req)
			}
		})
	}

	if _, err := ParseErr("http GET a.io"); !errors.Is(err, ErrNotCurl) {
		t.Errorf("error = %v, want ErrNotCurl", err)
	}
}

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`a 'b c' "d e"`, []string{"a", "b c", "d e"}},
		{`a "x\"y" 'x\"y'`, []string{"a", `x"y`, `x\"y`}},
		{`-H'A: b'`, []string{"-HA: b"}},
		{`a ''`, []string{"a", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			toks, err := splitTokens(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got []string
			for _, tok := range toks {
				got = append(got, tok.text)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitTokens(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
