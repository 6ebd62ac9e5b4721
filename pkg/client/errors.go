package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired is matched by every 401 from the backend.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrNotAuthenticated is returned before any call that needs a session
	// when none is stored.
	ErrNotAuthenticated = errors.New("please login first")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrSessionExpired
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// parseError turns a failed response into an *APIError, preferring the
// backend's message and falling back to text built from fallback.
func parseError(resp *http.Response, fallback string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{Status: resp.StatusCode, Body: body}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = strings.TrimSpace(eb.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(eb.Error)
		}
	}
	if apiErr.Message == "" {
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			apiErr.Message = "Session expired. Please log in again."
		case fallback != "":
			apiErr.Message = fmt.Sprintf("%s (status %d)", fallback, resp.StatusCode)
		default:
			apiErr.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
	}
	return apiErr
}

// Message returns the text to show a user for err: the backend message of
// an *APIError, or err's own text.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
