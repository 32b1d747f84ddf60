package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/notify"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

// Authenticator performs the remote login and register calls.
type Authenticator interface {
	Login(ctx context.Context, creds storefrontapi.Credentials) (*storefrontapi.AuthResponse, error)
	Register(ctx context.Context, fields map[string]any) (*storefrontapi.AuthResponse, error)
}

// Syncer re-projects state after a session change.
type Syncer interface {
	Sync(ctx context.Context)
}

// Store mirrors the authenticated user and bearer token into storage. Both
// entries are present or both absent; anything else reads as logged out.
type Store struct {
	kv       storage.Storage
	auth     Authenticator
	notifier notify.Notifier
	logg     *logger.Logger

	mu     sync.RWMutex
	user   *User
	token  string
	syncer Syncer
}

func NewStore(kv storage.Storage, auth Authenticator, notifier notify.Notifier, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{kv: kv, auth: auth, notifier: notifier, logg: logg}
}

func (s *Store) SetSyncer(syncer Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = syncer
}

// Hydrate loads the session from storage. A lone user or token, or a user
// record that does not parse, is cleared and the shopper stays logged out.
func (s *Store) Hydrate(ctx context.Context) {
	rawUser, userErr := s.kv.Get(ctx, storage.KeyUserData)
	token, tokenErr := s.kv.Get(ctx, storage.KeyUserToken)

	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()

	if readFailed(userErr) || readFailed(tokenErr) {
		s.logg.Error(ctx, "read persisted session", multierr.Combine(ignoreNotFound(userErr), ignoreNotFound(tokenErr)))
		return
	}
	userPresent, tokenPresent := userErr == nil, tokenErr == nil && token != ""
	if !userPresent && !tokenPresent {
		return
	}
	if userPresent != tokenPresent {
		s.logg.Warn(ctx, "partial session in storage cleared")
		s.clearStorage(ctx)
		return
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "malformed persisted user cleared")
		s.clearStorage(ctx)
		return
	}

	s.mu.Lock()
	s.user, s.token = &user, token
	s.mu.Unlock()
}

// Login authenticates against the remote API and persists the session.
func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, s.fail(ctx, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required"))
	}
	if s.auth == nil {
		return nil, s.fail(ctx, pkgerrors.New(pkgerrors.CodeDependency, "authentication unavailable"))
	}

	resp, err := s.auth.Login(ctx, storefrontapi.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	user, err := s.persist(ctx, resp)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.sync(ctx)
	notify.Success(ctx, s.notifier, "Login successful!")
	return user, nil
}

// Register creates the account. The shopper is only logged in when the
// response also carries a token.
func (s *Store) Register(ctx context.Context, fields map[string]any) (*User, error) {
	if len(fields) == 0 {
		return nil, s.fail(ctx, pkgerrors.New(pkgerrors.CodeValidation, "registration fields are required"))
	}
	if s.auth == nil {
		return nil, s.fail(ctx, pkgerrors.New(pkgerrors.CodeDependency, "authentication unavailable"))
	}

	resp, err := s.auth.Register(ctx, fields)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	var user *User
	if resp != nil && resp.Token != "" {
		user, err = s.persist(ctx, resp)
		if err != nil {
			return nil, s.fail(ctx, err)
		}
		s.sync(ctx)
	} else if resp != nil && len(resp.User) > 0 {
		var parsed User
		if jsonErr := json.Unmarshal(resp.User, &parsed); jsonErr == nil {
			user = &parsed
		}
	}

	notify.Success(ctx, s.notifier, "Registration successful!")
	return user, nil
}

// Logout drops both entries. No network call is made; the in-memory session
// is cleared even if storage fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()

	if err := s.clearStorage(ctx); err != nil {
		s.sync(ctx)
		return s.fail(ctx, pkgerrors.Wrap(pkgerrors.CodeStorage, err, ""))
	}
	s.sync(ctx)
	notify.Success(ctx, s.notifier, "Logged out successfully!")
	return nil
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

// CurrentUser returns a copy of the cached user, or nil when logged out.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) FirstName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.FirstName()
}

// persist writes user and token as one unit and installs them in memory.
func (s *Store) persist(ctx context.Context, resp *storefrontapi.AuthResponse) (*User, error) {
	if resp == nil || resp.Token == "" || len(resp.User) == 0 || string(resp.User) == "null" {
		return nil, pkgerrors.New(pkgerrors.CodeNetworkFailure, "unexpected response from server")
	}
	var user User
	if err := json.Unmarshal(resp.User, &user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "unexpected response from server")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode user")
	}

	sets := map[string]string{
		storage.KeyUserToken: resp.Token,
		storage.KeyUserData:  string(rawUser),
	}
	if err := storage.Apply(ctx, s.kv, sets, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "")
	}

	s.mu.Lock()
	s.user, s.token = &user, resp.Token
	s.mu.Unlock()

	out := user
	return &out, nil
}

func (s *Store) clearStorage(ctx context.Context) error {
	return multierr.Append(
		s.kv.Remove(ctx, storage.KeyUserData),
		s.kv.Remove(ctx, storage.KeyUserToken),
	)
}

func (s *Store) fail(ctx context.Context, err error) error {
	ctx = s.logg.WithField(ctx, "code", string(pkgerrors.CodeOf(err)))
	s.logg.Warn(ctx, fmt.Sprintf("session operation failed: %v", err))
	notify.Failure(ctx, s.notifier, err)
	return err
}

func (s *Store) sync(ctx context.Context) {
	s.mu.RLock()
	syncer := s.syncer
	s.mu.RUnlock()
	if syncer != nil {
		syncer.Sync(ctx)
	}
}

func readFailed(err error) bool {
	return err != nil && !errors.Is(err, storage.ErrNotFound)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
