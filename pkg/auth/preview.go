package auth

import (
	"encoding/base64"

	"github.com/blackcoderx/apix/pkg/storage"
)

// Applied is what a request's credentials add to the outgoing call.
type Applied struct {
	Headers []storage.KeyValue
	Params  []storage.KeyValue
}

// Preview returns the header or query row the proxy derives from req's
// auth. Requests without auth, or with empty credentials, add nothing.
func Preview(req *storage.Request) Applied {
	var out Applied
	switch a := req.Auth.(type) {
	case storage.BasicAuth:
		if a.Username == "" && a.Password == "" {
			return out
		}
		out.Headers = append(out.Headers, row("Authorization", "Basic "+EncodeBasic(a.Username, a.Password)))
	case storage.BearerAuth:
		if a.Token == "" {
			return out
		}
		out.Headers = append(out.Headers, row("Authorization", "Bearer "+a.Token))
	case storage.OAuth2Auth:
		if a.AccessToken == "" {
			return out
		}
		tokenType := a.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		out.Headers = append(out.Headers, row("Authorization", tokenType+" "+a.AccessToken))
	case storage.APIKeyAuth:
		if a.Key == "" {
			return out
		}
		if a.AddTo == storage.APIKeyInQuery {
			out.Params = append(out.Params, row(a.Key, a.Value))
		} else {
			out.Headers = append(out.Headers, row(a.Key, a.Value))
		}
	}
	return out
}

// EncodeBasic returns the base64 credentials of a Basic header.
func EncodeBasic(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

func row(name, value string) storage.KeyValue {
	return storage.KeyValue{ID: "auth", Name: name, Value: value, Enabled: true}
}
