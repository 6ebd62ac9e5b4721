package envstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcoderx/apix/pkg/storage"
)

type session bool

func (s session) LoggedIn() bool { return bool(s) }

type fakeService struct {
	envs    []storage.Environment
	calls   int
	failAll error
	lastPut []storage.Variable
	// loading captures Loading() during a call
	store   *Store
	loading bool
}

func (f *fakeService) observe() error {
	f.calls++
	if f.store != nil {
		f.loading = f.store.Loading()
	}
	return f.failAll
}

func (f *fakeService) ListEnvironments(context.Context) ([]storage.Environment, error) {
	if err := f.observe(); err != nil {
		return nil, err
	}
	return f.envs, nil
}

func (f *fakeService) CreateEnvironment(_ context.Context, name string) (storage.Environment, error) {
	if err := f.observe(); err != nil {
		return storage.Environment{}, err
	}
	return storage.Environment{ID: "env-" + name, Name: name}, nil
}

func (f *fakeService) UpdateEnvironmentVariables(_ context.Context, _ string, vars []storage.Variable) ([]storage.Variable, error) {
	if err := f.observe(); err != nil {
		return nil, err
	}
	f.lastPut = vars
	return vars, nil
}

func (f *fakeService) DeleteEnvironment(context.Context, string) error {
	return f.observe()
}

func newStore(t *testing.T, loggedIn bool) (*Store, *fakeService) {
	t.Helper()
	svc := &fakeService{envs: []storage.Environment{
		{ID: "e1", Name: "Dev", Variables: []storage.Variable{{Key: "host", Value: "localhost"}, {Key: "port", Value: "8080"}}},
	}}
	s := New(svc, session(loggedIn), nil)
	svc.store = s
	return s, svc
}

func TestNotAuthenticated_NoNetworkCall(t *testing.T) {
	s, svc := newStore(t, false)
	ctx := context.Background()

	assert.ErrorIs(t, s.FetchEnvironments(ctx), ErrNotAuthenticated)
	_, err := s.AddEnvironment(ctx, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated, "session is checked before the name")
	_, err = s.UpdateEnvironmentVariables(ctx, "e1", []storage.Variable{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, s.DeleteEnvironment(ctx, "e1"), ErrNotAuthenticated)
	assert.ErrorIs(t, s.DeleteEnvironmentVariable(ctx, "e1", 0), ErrNotAuthenticated)
	assert.Equal(t, 0, svc.calls)
}

func TestEnvironments_SyntheticGlobal(t *testing.T) {
	s, _ := newStore(t, true)
	envs := s.Environments()
	require.Len(t, envs, 1)
	assert.Equal(t, storage.GlobalEnvironmentID, envs[0].ID)

	require.NoError(t, s.FetchEnvironments(context.Background()))
	envs = s.Environments()
	require.Len(t, envs, 2)
	assert.Equal(t, "e1", envs[1].ID)

	envs[1].Variables[0].Value = "mutated"
	assert.Equal(t, "localhost", s.Environments()[1].Variables[0].Value, "callers get a copy")
}

func TestEnvironments_BackendGlobalKept(t *testing.T) {
	svc := &fakeService{envs: []storage.Environment{{ID: "global", Name: "Shared", Variables: []storage.Variable{{Key: "a", Value: "1"}}}}}
	s := New(svc, session(true), nil)
	require.NoError(t, s.FetchEnvironments(context.Background()))
	envs := s.Environments()
	require.Len(t, envs, 1)
	assert.Equal(t, "Shared", envs[0].Name)
}

func TestSyntheticGlobal_NotWritten(t *testing.T) {
	s, svc := newStore(t, true)
	ctx := context.Background()
	require.NoError(t, s.FetchEnvironments(ctx))
	calls := svc.calls

	assert.ErrorIs(t, s.SetVariable(ctx, storage.GlobalEnvironmentID, "k", "v"), ErrGlobalNotStored)
	_, err := s.UpdateEnvironmentVariables(ctx, storage.GlobalEnvironmentID, []storage.Variable{{Key: "k", Value: "v"}})
	assert.ErrorIs(t, err, ErrGlobalNotStored)
	assert.Equal(t, calls, svc.calls, "no backend call for the synthesised global")

	svc.envs = append(svc.envs, storage.Environment{ID: storage.GlobalEnvironmentID, Name: "Global"})
	require.NoError(t, s.FetchEnvironments(ctx))
	require.NoError(t, s.SetVariable(ctx, storage.GlobalEnvironmentID, "k", "v"))
	assert.Equal(t, []storage.Variable{{Key: "k", Value: "v"}}, svc.lastPut)
}

func TestAddEnvironment(t *testing.T) {
	s, svc := newStore(t, true)
	ctx := context.Background()

	env, err := s.AddEnvironment(ctx, "  Staging ")
	require.NoError(t, err)
	assert.Equal(t, "Staging", env.Name)
	assert.NotNil(t, env.Variables)
	assert.True(t, svc.loading)
	assert.False(t, s.Loading())

	_, err = s.AddEnvironment(ctx, "   ")
	assert.ErrorIs(t, err, ErrNameRequired)

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.AddEnvironment(ctx, string(long))
	assert.ErrorIs(t, err, ErrNameTooLong)
	assert.Equal(t, 1, svc.calls)
}

func TestAddEnvironment_FailureLeavesList(t *testing.T) {
	s, svc := newStore(t, true)
	svc.failAll = errors.New("boom")

	_, err := s.AddEnvironment(context.Background(), "Staging")
	require.Error(t, err)
	assert.Len(t, s.Environments(), 1)
	assert.False(t, s.Loading())
}

func TestUpdateEnvironmentVariables_Filters(t *testing.T) {
	s, svc := newStore(t, true)
	require.NoError(t, s.FetchEnvironments(context.Background()))

	in := []any{
		map[string]any{"key": "a", "value": "1"},
		map[string]any{"key": "b", "value": 2},
		map[string]any{"key": "c"},
		"junk",
		storage.Variable{Key: "d", Value: "4"},
	}
	got, err := s.UpdateEnvironmentVariables(context.Background(), "e1", in)
	require.NoError(t, err)
	want := []storage.Variable{{Key: "a", Value: "1"}, {Key: "d", Value: "4"}}
	assert.Equal(t, want, got)
	assert.Equal(t, want, svc.lastPut)

	env, _ := s.Find("e1")
	assert.Equal(t, want, env.Variables)

	_, err = s.UpdateEnvironmentVariables(context.Background(), "e1", "not a list")
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestDeleteEnvironment(t *testing.T) {
	s, _ := newStore(t, true)
	ctx := context.Background()
	require.NoError(t, s.FetchEnvironments(ctx))

	assert.ErrorIs(t, s.DeleteEnvironment(ctx, storage.GlobalEnvironmentID), ErrGlobalProtected)
	require.NoError(t, s.DeleteEnvironment(ctx, "e1"))
	_, ok := s.Find("e1")
	assert.False(t, ok)
}

func TestDeleteEnvironmentVariable(t *testing.T) {
	s, svc := newStore(t, true)
	ctx := context.Background()
	require.NoError(t, s.FetchEnvironments(ctx))

	require.NoError(t, s.DeleteEnvironmentVariable(ctx, "e1", 0))
	assert.Equal(t, []storage.Variable{{Key: "port", Value: "8080"}}, svc.lastPut)

	for _, idx := range []int{-1, 1, 5} {
		assert.ErrorIs(t, s.DeleteEnvironmentVariable(ctx, "e1", idx), ErrInvalidIndex, "index %d", idx)
	}
	assert.ErrorIs(t, s.DeleteEnvironmentVariable(ctx, "nope", 0), ErrInvalidIndex)
}

func TestSetVariable(t *testing.T) {
	s, svc := newStore(t, true)
	ctx := context.Background()
	require.NoError(t, s.FetchEnvironments(ctx))

	require.NoError(t, s.SetVariable(ctx, "e1", "port", "9090"))
	require.NoError(t, s.SetVariable(ctx, "e1", "token", "abc"))
	assert.Equal(t, []storage.Variable{
		{Key: "host", Value: "localhost"},
		{Key: "port", Value: "9090"},
		{Key: "token", Value: "abc"},
	}, svc.lastPut)

	assert.ErrorIs(t, s.SetVariable(ctx, "nope", "a", "b"), ErrNotFound)
}

func TestImportDotenv(t *testing.T) {
	s, svc := newStore(t, true)
	ctx := context.Background()
	require.NoError(t, s.FetchEnvironments(ctx))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# local\nhost=api.local\nAPI_KEY=\"s3cr3t\"\n"), 0600))

	n, err := s.ImportDotenv(ctx, "e1", path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []storage.Variable{
		{Key: "host", Value: "api.local"},
		{Key: "port", Value: "8080"},
		{Key: "API_KEY", Value: "s3cr3t"},
	}, svc.lastPut)

	_, err = s.ImportDotenv(ctx, "e1", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestFind_ByName(t *testing.T) {
	s, _ := newStore(t, true)
	require.NoError(t, s.FetchEnvironments(context.Background()))
	env, ok := s.Find("dev")
	require.True(t, ok)
	assert.Equal(t, "e1", env.ID)
}
