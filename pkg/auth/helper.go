package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JWT is a decoded, unverified JSON Web Token.
type JWT struct {
	Header    map[string]any
	Claims    map[string]any
	Signature string
}

// Subject returns the sub claim.
func (j JWT) Subject() string {
	s, _ := j.Claims["sub"].(string)
	return s
}

// ExpiresAt returns the exp claim, if present.
func (j JWT) ExpiresAt() (time.Time, bool) {
	return j.unixClaim("exp")
}

// IssuedAt returns the iat claim, if present.
func (j JWT) IssuedAt() (time.Time, bool) {
	return j.unixClaim("iat")
}

// Expired reports whether the token has an exp claim before now.
func (j JWT) Expired(now time.Time) bool {
	exp, ok := j.ExpiresAt()
	return ok && exp.Before(now)
}

func (j JWT) unixClaim(name string) (time.Time, bool) {
	v, ok := j.Claims[name].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0).UTC(), true
}

// ParseJWT decodes the header and claims of token. A leading "Bearer " is
// ignored. The signature is not verified.
func ParseJWT(token string) (JWT, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return JWT{}, fmt.Errorf("token is required")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return JWT{}, fmt.Errorf("invalid JWT format (expected 3 parts, got %d)", len(parts))
	}

	var out JWT
	if err := decodeSegment(parts[0], &out.Header); err != nil {
		return JWT{}, fmt.Errorf("header: %w", err)
	}
	if err := decodeSegment(parts[1], &out.Claims); err != nil {
		return JWT{}, fmt.Errorf("payload: %w", err)
	}
	out.Signature = parts[2]
	return out, nil
}

// DecodeBasic splits a Basic credential, with or without its "Basic "
// prefix, into username and password.
func DecodeBasic(header string) (username, password string, err error) {
	encoded := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Basic "))
	if encoded == "" {
		return "", "", fmt.Errorf("credentials are required")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode Basic auth: %w", err)
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("invalid Basic auth format (expected username:password)")
	}
	return username, password, nil
}

// decodeSegment decodes one URL-safe base64 JWT part, padded or not.
func decodeSegment(part string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part, "="))
	if err != nil {
		return fmt.Errorf("failed to decode JWT part: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse JWT part: %w", err)
	}
	return nil
}
