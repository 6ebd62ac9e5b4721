package storage

import (
	"fmt"
	"strings"
)

// AuthType names the authorization scheme of a request.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthOAuth2 AuthType = "oauth2"
	AuthAPIKey AuthType = "apikey"
)

func ParseAuthType(s string) (AuthType, error) {
	switch at := AuthType(strings.ToLower(strings.TrimSpace(s))); at {
	case AuthNone, AuthBasic, AuthBearer, AuthOAuth2, AuthAPIKey:
		return at, nil
	case "":
		return AuthNone, nil
	default:
		return "", fmt.Errorf("unsupported auth type %q", s)
	}
}

// Auth is the credential bag of a request, one concrete type per AuthType.
// A nil Auth means no authorization.
type Auth interface {
	Type() AuthType
}

type BasicAuth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type BearerAuth struct {
	Token string `json:"token" yaml:"token"`
}

type OAuth2Auth struct {
	AccessToken string `json:"accessToken" yaml:"accessToken"`
	TokenType   string `json:"tokenType" yaml:"tokenType"`
}

// APIKeyLocation says where an API key is attached.
type APIKeyLocation string

const (
	APIKeyInHeader APIKeyLocation = "header"
	APIKeyInQuery  APIKeyLocation = "query"
)

type APIKeyAuth struct {
	Key   string         `json:"key" yaml:"key"`
	Value string         `json:"value" yaml:"value"`
	AddTo APIKeyLocation `json:"addTo" yaml:"addTo"`
}

func (BasicAuth) Type() AuthType  { return AuthBasic }
func (BearerAuth) Type() AuthType { return AuthBearer }
func (OAuth2Auth) Type() AuthType { return AuthOAuth2 }
func (APIKeyAuth) Type() AuthType { return AuthAPIKey }

// AuthTypeOf returns the discriminator of a, treating nil as none.
func AuthTypeOf(a Auth) AuthType {
	if a == nil {
		return AuthNone
	}
	return a.Type()
}

// EmptyAuth returns the zero credentials for at.
func EmptyAuth(at AuthType) Auth {
	switch at {
	case AuthBasic:
		return BasicAuth{}
	case AuthBearer:
		return BearerAuth{}
	case AuthOAuth2:
		return OAuth2Auth{TokenType: "Bearer"}
	case AuthAPIKey:
		return APIKeyAuth{AddTo: APIKeyInHeader}
	default:
		return nil
	}
}

func authValue(a Auth) any {
	if a == nil {
		return map[string]string{}
	}
	return a
}

func decodeAuth(at AuthType, present bool, decode func(any) error) (Auth, error) {
	if at == "" {
		at = AuthNone
	}
	if !present {
		return EmptyAuth(at), nil
	}
	switch at {
	case AuthNone:
		return nil, nil
	case AuthBasic:
		var v BasicAuth
		if err := decode(&v); err != nil {
			return nil, fmt.Errorf("decode basic auth: %w", err)
		}
		return v, nil
	case AuthBearer:
		var v BearerAuth
		if err := decode(&v); err != nil {
			return nil, fmt.Errorf("decode bearer auth: %w", err)
		}
		return v, nil
	case AuthOAuth2:
		var v OAuth2Auth
		if err := decode(&v); err != nil {
			return nil, fmt.Errorf("decode oauth2 auth: %w", err)
		}
		return v, nil
	case AuthAPIKey:
		var v APIKeyAuth
		if err := decode(&v); err != nil {
			return nil, fmt.Errorf("decode apikey auth: %w", err)
		}
		if v.AddTo == "" {
			v.AddTo = APIKeyInHeader
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", at)
	}
}
