package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcoderx/apix/pkg/storage"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return c
}

func TestClient_ErrorNormalisation(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		expired bool
	}{
		{"backend message", 400, `{"message":"Name taken"}`, "Name taken", false},
		{"error field", 500, `{"error":"boom"}`, "boom", false},
		{"no body", 404, ``, "Environment creation failed (status 404)", false},
		{"html body", 502, `<html>bad gateway</html>`, "Environment creation failed (status 502)", false},
		{"unauthorized", 401, ``, "Session expired. Please log in again.", true},
		{"unauthorized with message", 401, `{"message":"Token invalid"}`, "Token invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.CreateEnvironment(context.Background(), "dev")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMsg, Message(err))
			assert.Equal(t, tt.expired, errors.Is(err, ErrSessionExpired))
		})
	}
}

func TestClient_LoginStoresTokenAndCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ada@example.com", creds.Email)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, `{"token":"tok-1","user":{"_id":"u1","name":"Ada","email":"ada@example.com"}}`)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		ck, err := r.Cookie("sid")
		require.NoError(t, err)
		assert.Equal(t, "abc", ck.Value)
		_, _ = io.WriteString(w, `{"user":{"_id":"u1","name":"Ada"}}`)
	})
	c := newTestClient(t, mux)

	assert.False(t, c.LoggedIn())
	s, err := c.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	require.NotNil(t, s.User)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, []Cookie{{Name: "sid", Value: "abc"}}, s.Cookies)
	assert.True(t, c.LoggedIn())

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
}

func TestClient_SeededSessionCookies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("sid")
		if err != nil || ck.Value != "stored" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}), WithSession(&Session{Cookies: []Cookie{{Name: "sid", Value: "stored"}}}))

	envs, err := c.ListEnvironments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestClient_LogoutClearsSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), WithSession(&Session{Token: "t"}))

	err := c.Logout(context.Background())
	assert.Error(t, err)
	assert.False(t, c.LoggedIn())
}

func TestClient_DecodesBackendIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/environments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"_id":"e1","name":"dev","variables":[{"key":"host","value":"x"}]}]`)
	})
	mux.HandleFunc("/api/collections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ws1", r.URL.Query().Get("workspaceId"))
		_, _ = io.WriteString(w, `[{"_id":"c1","name":"Users","requests":[]}]`)
	})
	c := newTestClient(t, mux)

	envs, err := c.ListEnvironments(context.Background())
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "e1", envs[0].ID)
	assert.Equal(t, []storage.Variable{{Key: "host", Value: "x"}}, envs[0].Variables)

	cols, err := c.ListCollections(context.Background(), "ws1")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "c1", cols[0].ID)
}

func TestClient_UpdateEnvironmentVariables(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/environments/e1", r.URL.Path)
		var in struct {
			Variables []storage.Variable `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": "e1", "name": "dev", "variables": in.Variables})
	}))

	vars := []storage.Variable{{Key: "a", Value: "1"}}
	got, err := c.UpdateEnvironmentVariables(context.Background(), "e1", vars)
	require.NoError(t, err)
	assert.Equal(t, vars, got)
}

func TestSession_SaveLoadClear(t *testing.T) {
	path := SessionPath(filepath.Join(t.TempDir(), ".apix"))

	s, err := LoadSession(path)
	require.NoError(t, err)
	assert.False(t, s.LoggedIn())

	want := &Session{Token: "tok", User: &User{ID: "u1", Name: "Ada"}}
	require.NoError(t, SaveSession(path, want))

	got, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))
	s, err = LoadSession(path)
	require.NoError(t, err)
	assert.False(t, s.LoggedIn())
}

func TestProxy_Send(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLen   int
		wantSel   int
		wantCode  int
		wantErr   bool
		wantEmpty bool
	}{
		{
			name:     "single response",
			status:   200,
			body:     `{"statusCode":200,"statusText":"OK","responseTime":12,"headers":{"x-count":3},"body":{"ok":true},"size":11}`,
			wantLen:  1,
			wantSel:  0,
			wantCode: 200,
		},
		{
			name:     "redirect chain",
			status:   200,
			body:     `[{"statusCode":301,"statusText":"Moved","headers":{},"body":""},{"statusCode":200,"statusText":"OK","headers":{},"body":"done"}]`,
			wantLen:  2,
			wantSel:  1,
			wantCode: 200,
		},
		{
			name:     "error with response shape",
			status:   500,
			body:     `{"statusCode":0,"statusText":"Error","headers":{},"body":"ECONNREFUSED"}`,
			wantLen:  1,
			wantCode: 0,
			wantErr:  true,
		},
		{
			name:      "error without response shape",
			status:    500,
			body:      `{"message":"proxy down"}`,
			wantErr:   true,
			wantEmpty: true,
		},
		{
			name:      "success with unexpected body",
			status:    200,
			body:      `"hello"`,
			wantErr:   true,
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/request", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewProxy(srv.URL + "/api")
			set, err := p.Send(context.Background(), storage.NewRequest("request1", "GET Request 1"))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.wantEmpty {
				assert.Equal(t, 0, set.Len())
				return
			}
			assert.Equal(t, tt.wantLen, set.Len())
			assert.Equal(t, tt.wantSel, set.Selected)
			cur, ok := set.Current()
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, cur.StatusCode)
		})
	}
}

func TestProxy_Payload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"statusCode":204,"statusText":"No Content","headers":{},"body":""}`)
	}))
	defer srv.Close()

	req := storage.NewRequest("request1", "GET Request 1")
	req.URL = "https://api.example.com/users"
	req.Headers[2].Enabled = false
	req.BodyType = storage.BodyNone
	req.Body = nil
	req.Auth = storage.BearerAuth{Token: "secret"}

	p := NewProxy(srv.URL, WithSession(&Session{Token: "tok"}))
	_, err := p.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "GET", got["method"])
	assert.Equal(t, "https://api.example.com/users", got["url"])
	assert.Equal(t, "", got["body"])
	assert.Equal(t, "none", got["bodyType"])
	assert.Equal(t, "bearer", got["authType"])
	assert.Len(t, got["headers"], 4)
}

func TestProxy_FollowsClientSession(t *testing.T) {
	var auths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"tok-2","user":{"id":"u1","name":"Ada"}}`)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/request", func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"statusCode":200,"statusText":"OK","headers":{},"body":""}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL+"/api", WithSession(&Session{Token: "tok-1"}))
	require.NoError(t, err)
	p := NewProxy(srv.URL+"/api", WithTokenSource(c.Token))
	req := storage.NewRequest("request1", "GET Request 1")
	ctx := context.Background()

	_, err = p.Send(ctx, req)
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	_, err = p.Send(ctx, req)
	require.NoError(t, err)
	_, err = c.Login(ctx, Credentials{Email: "ada@x.io", Password: "pw"})
	require.NoError(t, err)
	_, err = p.Send(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer tok-1", "", "Bearer tok-2"}, auths)
}

func TestProxy_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"statusCode":200,"statusText":"OK","headers":{},"body":""}`)
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, WithRateLimit(1))
	req := storage.NewRequest("request1", "GET Request 1")

	_, err := p.Send(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Send(ctx, req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
