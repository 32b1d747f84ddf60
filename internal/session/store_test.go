package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/notify"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

type stubAuth struct {
	loginResp    *storefrontapi.AuthResponse
	loginErr     error
	registerResp *storefrontapi.AuthResponse
	registerErr  error
	calls        int
}

func (s *stubAuth) Login(context.Context, storefrontapi.Credentials) (*storefrontapi.AuthResponse, error) {
	s.calls++
	return s.loginResp, s.loginErr
}

func (s *stubAuth) Register(context.Context, map[string]any) (*storefrontapi.AuthResponse, error) {
	s.calls++
	return s.registerResp, s.registerErr
}

// tokenFailStorage refuses to write the token key.
type tokenFailStorage struct {
	*storage.Memory
}

func (t tokenFailStorage) Set(ctx context.Context, key, value string) error {
	if key == storage.KeyUserToken {
		return errors.New("quota exceeded")
	}
	return t.Memory.Set(ctx, key, value)
}

type noBatch struct{ storage.Storage }

const anaJSON = `{"id":1,"name":"Ana Clara Souza","email":"ana@example.com","address":{"cep":"01001000"}}`

func okLogin() *stubAuth {
	return &stubAuth{loginResp: &storefrontapi.AuthResponse{User: json.RawMessage(anaJSON), Token: "tok-1"}}
}

func TestLoginPersistsUserAndToken(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	rec := &notify.Recorder{}
	store := NewStore(kv, okLogin(), rec, nil)

	user, err := store.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.FirstName())
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "tok-1", store.Token())

	token, err := kv.Get(ctx, storage.KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	raw, err := kv.Get(ctx, storage.KeyUserData)
	require.NoError(t, err)
	assert.JSONEq(t, anaJSON, raw, "unknown user fields must survive")

	last, _ := rec.Last()
	assert.Equal(t, notify.KindSuccess, last.Kind)

	fresh := NewStore(kv, nil, nil, nil)
	fresh.Hydrate(ctx)
	assert.True(t, fresh.IsAuthenticated())
	assert.Equal(t, "Ana", fresh.FirstName())
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	rec := &notify.Recorder{}
	auth := &stubAuth{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "Email ou senha inválidos")}
	store := NewStore(kv, auth, rec, nil)

	_, err := store.Login(ctx, "ana@example.com", "wrong")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, kv.Keys())

	last, _ := rec.Last()
	assert.Equal(t, notify.Notification{Kind: notify.KindError, Message: "Email ou senha inválidos"}, last)
}

func TestLoginNetworkFailureUsesGenericMessage(t *testing.T) {
	rec := &notify.Recorder{}
	auth := &stubAuth{loginErr: pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, errors.New("dial tcp"), "")}
	store := NewStore(storage.NewMemory(), auth, rec, nil)

	_, err := store.Login(context.Background(), "ana@example.com", "secret")
	require.Error(t, err)
	last, _ := rec.Last()
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeNetworkFailure).PublicMessage, last.Message)
}

func TestLoginValidatesInputWithoutNetwork(t *testing.T) {
	auth := okLogin()
	store := NewStore(storage.NewMemory(), auth, nil, nil)
	_, err := store.Login(context.Background(), " ", "secret")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, auth.calls)
}

func TestLoginIsBothOrNeither(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	// noBatch hides Memory.Apply so the write-then-restore path runs.
	store := NewStore(noBatch{tokenFailStorage{mem}}, okLogin(), nil, nil)

	_, err := store.Login(ctx, "ana@example.com", "secret")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStorage))
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, mem.Keys(), "no half session may remain")
}

func TestLoginRejectsIncompleteResponse(t *testing.T) {
	kv := storage.NewMemory()
	auth := &stubAuth{loginResp: &storefrontapi.AuthResponse{User: json.RawMessage(anaJSON)}}
	store := NewStore(kv, auth, nil, nil)

	_, err := store.Login(context.Background(), "ana@example.com", "secret")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNetworkFailure))
	assert.Empty(t, kv.Keys())
}

func TestRegisterDoesNotLogInWithoutToken(t *testing.T) {
	kv := storage.NewMemory()
	rec := &notify.Recorder{}
	auth := &stubAuth{registerResp: &storefrontapi.AuthResponse{User: json.RawMessage(anaJSON)}}
	store := NewStore(kv, auth, rec, nil)

	user, err := store.Register(context.Background(), map[string]any{"name": "Ana Clara Souza", "email": "ana@example.com"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, kv.Keys())

	last, _ := rec.Last()
	assert.Equal(t, "Registration successful!", last.Message)
}

func TestRegisterWithTokenLogsIn(t *testing.T) {
	auth := &stubAuth{registerResp: &storefrontapi.AuthResponse{User: json.RawMessage(anaJSON), Token: "tok-2"}}
	store := NewStore(storage.NewMemory(), auth, nil, nil)

	_, err := store.Register(context.Background(), map[string]any{"email": "ana@example.com"})
	require.NoError(t, err)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "tok-2", store.Token())
}

func TestRegisterFailure(t *testing.T) {
	rec := &notify.Recorder{}
	auth := &stubAuth{registerErr: pkgerrors.New(pkgerrors.CodeValidation, "Email já cadastrado")}
	store := NewStore(storage.NewMemory(), auth, rec, nil)

	_, err := store.Register(context.Background(), map[string]any{"email": "ana@example.com"})
	require.Error(t, err)
	last, _ := rec.Last()
	assert.Equal(t, "Email já cadastrado", last.Message)
}

func TestLogoutClearsBothKeys(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	store := NewStore(kv, okLogin(), nil, nil)
	_, err := store.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, store.Logout(ctx))
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.CurrentUser())
	assert.Empty(t, kv.Keys())
}

func TestHydratePartialStateIsLoggedOut(t *testing.T) {
	ctx := context.Background()

	tests := map[string]map[string]string{
		"token only":     {storage.KeyUserToken: "tok"},
		"user only":      {storage.KeyUserData: anaJSON},
		"empty token":    {storage.KeyUserData: anaJSON, storage.KeyUserToken: ""},
		"malformed user": {storage.KeyUserData: "{oops", storage.KeyUserToken: "tok"},
	}
	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			kv := storage.NewMemory()
			for k, v := range entries {
				require.NoError(t, kv.Set(ctx, k, v))
			}
			store := NewStore(kv, nil, nil, nil)
			store.Hydrate(ctx)
			assert.False(t, store.IsAuthenticated())
			assert.Empty(t, kv.Keys(), "stray half should be cleared")
		})
	}
}

func TestUserKeepsUnknownFields(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(anaJSON), &u))
	assert.Contains(t, u.Extra, "address")
	assert.NotContains(t, u.Extra, "name")

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, anaJSON, string(out))

	assert.Equal(t, "", User{}.FirstName())
}
