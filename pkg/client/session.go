package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// User is the account returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string `json:"id"`
		AltID string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.AltID
	}
	u.Name = raw.Name
	u.Email = raw.Email
	return nil
}

// Cookie is a stored session cookie.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is the login state kept between invocations.
type Session struct {
	Token   string   `json:"token,omitempty"`
	User    *User    `json:"user,omitempty"`
	Cookies []Cookie `json:"cookies,omitempty"`
}

// LoggedIn reports whether the session carries any credential.
func (s *Session) LoggedIn() bool {
	return s != nil && (s.Token != "" || len(s.Cookies) > 0)
}

func (s *Session) httpCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SessionPath returns the session file inside the apix folder.
func SessionPath(baseDir string) string {
	return filepath.Join(baseDir, "session.json")
}

// LoadSession reads a session file. A missing file is an empty session.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}

// SaveSession writes s with owner-only permissions.
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ClearSession removes the session file.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
