package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/blackcoderx/apix/pkg/storage"
)

// Credentials are sent to the login and register endpoints.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login authenticates and stores the returned token and cookies in the
// client's session.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &out, "Login failed"); err != nil {
		return nil, err
	}
	return c.storeSession(out), nil
}

// Register creates an account. Backends that log the new user in return a
// token, which is stored like Login's.
func (c *Client) Register(ctx context.Context, creds Credentials) (*Session, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, creds, &out, "Registration failed"); err != nil {
		return nil, err
	}
	return c.storeSession(out), nil
}

func (c *Client) storeSession(out authResponse) *Session {
	c.mu.Lock()
	c.session.Token = out.Token
	c.session.User = out.User
	c.session.Cookies = c.session.Cookies[:0]
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		c.session.Cookies = append(c.session.Cookies, Cookie{Name: ck.Name, Value: ck.Value})
	}
	c.mu.Unlock()
	return c.Session()
}

// Me returns the logged in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out, "Fetching current user failed"); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout ends the session on the backend and forgets local credentials even
// when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, "Logout failed")
	c.mu.Lock()
	c.session = &Session{}
	c.mu.Unlock()
	return err
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]storage.Workspace, error) {
	var out []storage.Workspace
	err := c.do(ctx, http.MethodGet, "/workspaces", nil, nil, &out, "Failed to fetch workspaces")
	return out, err
}

func (c *Client) CreateWorkspace(ctx context.Context, name, ownerID string) (storage.Workspace, error) {
	in := map[string]string{"name": name, "ownerId": ownerID}
	var out storage.Workspace
	err := c.do(ctx, http.MethodPost, "/workspaces", nil, in, &out, "Failed to create workspace")
	return out, err
}

func (c *Client) GetWorkspace(ctx context.Context, id string) (storage.Workspace, error) {
	var out storage.Workspace
	err := c.do(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(id), nil, nil, &out, "Failed to fetch workspace")
	return out, err
}

func (c *Client) ListCollections(ctx context.Context, workspaceID string) ([]storage.Collection, error) {
	var out []storage.Collection
	q := url.Values{"workspaceId": {workspaceID}}
	err := c.do(ctx, http.MethodGet, "/collections", q, nil, &out, "Failed to fetch collections")
	return out, err
}

func (c *Client) CreateCollection(ctx context.Context, workspaceID, name string) (storage.Collection, error) {
	in := map[string]string{"name": name, "workspaceId": workspaceID}
	if u := c.Session().User; u != nil {
		in["createdBy"] = u.ID
	}
	var out storage.Collection
	err := c.do(ctx, http.MethodPost, "/collections", nil, in, &out, "Failed to create collection")
	if out.Requests == nil {
		out.Requests = []storage.Request{}
	}
	return out, err
}

func (c *Client) RenameCollection(ctx context.Context, id, name string) error {
	in := map[string]string{"name": name}
	return c.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(id), nil, in, nil, "Failed to update collection")
}

func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(id), nil, nil, nil, "Failed to delete collection")
}

// AddRequestToCollection stores req in a collection and returns the saved
// copy.
func (c *Client) AddRequestToCollection(ctx context.Context, collectionID string, req storage.Request) (storage.Request, error) {
	in := struct {
		CollectionID string          `json:"collectionId"`
		Request      storage.Request `json:"request"`
	}{collectionID, req}
	var out storage.Request
	err := c.do(ctx, http.MethodPost, "/collections/add-request", nil, in, &out, "Failed to add request to collection")
	return out, err
}

func (c *Client) ListRequests(ctx context.Context, workspaceID string) ([]storage.Request, error) {
	var out []storage.Request
	q := url.Values{"workspaceId": {workspaceID}}
	err := c.do(ctx, http.MethodGet, "/requests", q, nil, &out, "Failed to fetch requests")
	return out, err
}

func (c *Client) ListEnvironments(ctx context.Context) ([]storage.Environment, error) {
	var out []storage.Environment
	err := c.do(ctx, http.MethodGet, "/environments", nil, nil, &out, "Could not fetch environments")
	return out, err
}

func (c *Client) CreateEnvironment(ctx context.Context, name string) (storage.Environment, error) {
	in := map[string]any{"name": name, "variables": []storage.Variable{}}
	var out storage.Environment
	err := c.do(ctx, http.MethodPost, "/environments", nil, in, &out, "Environment creation failed")
	return out, err
}

// UpdateEnvironmentVariables replaces an environment's variables and returns
// the list the backend stored.
func (c *Client) UpdateEnvironmentVariables(ctx context.Context, id string, vars []storage.Variable) ([]storage.Variable, error) {
	in := map[string][]storage.Variable{"variables": vars}
	var out storage.Environment
	if err := c.do(ctx, http.MethodPut, "/environments/"+url.PathEscape(id), nil, in, &out, "Update failed"); err != nil {
		return nil, err
	}
	if out.Variables == nil {
		return vars, nil
	}
	return out.Variables, nil
}

func (c *Client) DeleteEnvironment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/environments/"+url.PathEscape(id), nil, nil, nil, "Deletion failed")
}
