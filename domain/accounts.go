package domain

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var errUsernameTaken = &ConflictError{Field: "username", Message: "Username is already taken"}

// Accounts implements registration and credential checks over a UserStore.
type Accounts struct {
	users   UserStore
	events  Publisher
	logger  *log.Logger
	cost    int
	now     func() time.Time
	compare func(hash, password []byte) error

	// dummyHash is compared against on unknown usernames so both failure
	// modes cost one bcrypt comparison.
	dummyHash []byte
}

// AccountsOption customises an Accounts service.
type AccountsOption func(*Accounts)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) AccountsOption {
	return func(a *Accounts) { a.cost = cost }
}

// WithAccountEvents publishes registration and login events.
func WithAccountEvents(p Publisher) AccountsOption {
	return func(a *Accounts) {
		if p != nil {
			a.events = p
		}
	}
}

// WithAccountsLogger sets the logger for credential check failures.
func WithAccountsLogger(l *log.Logger) AccountsOption {
	return func(a *Accounts) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAccounts(users UserStore, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		users:   users,
		events:  discardPublisher{},
		logger:  log.StandardLogger(),
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
		compare: bcrypt.CompareHashAndPassword,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), a.cost)
	return a
}

// Register validates r, hashes the password and persists a new user.
// A taken username is reported as a *ConflictError on the username field.
func (a *Accounts) Register(ctx context.Context, r Registration) (User, error) {
	if err := validateStruct(r); err != nil {
		return User{}, err
	}
	if len(r.Password) > PasswordMaxLen {
		return User{}, ValidationErrors{{Field: "password", Message: "Password must be at most 72 bytes"}}
	}

	// Pre-check for the common case; the store's uniqueness constraint decides races.
	if _, err := a.users.FindUserByUsername(ctx, r.Username); err == nil {
		return User{}, errUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), a.cost)
	if err != nil {
		return User{}, err
	}
	u, err := a.users.CreateUser(ctx, User{
		Username:     r.Username,
		PasswordHash: string(hash),
		CreatedAt:    a.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return User{}, errUsernameTaken
		}
		return User{}, err
	}
	a.events.Publish(ctx, newEvent(UserRegistered, "user", u.ID, u.ID, u.CreatedAt, map[string]any{"username": u.Username}))
	return u, nil
}

// Authenticate returns the user matching username and password. Every
// failure mode yields ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := a.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = a.compare(a.dummyHash, []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := a.compare([]byte(u.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.logger.WithError(err).WithField("user_id", u.ID).Warn("accounts.hash.compare_failed")
		}
		return User{}, ErrInvalidCredentials
	}
	a.events.Publish(ctx, newEvent(UserLoggedIn, "user", u.ID, u.ID, a.now(), nil))
	return u, nil
}

// Lookup resolves an authenticated identifier to its user.
func (a *Accounts) Lookup(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrUnauthorized
	}
	return a.users.FindUserByID(ctx, id)
}

// LoggedOut records a logout. Tokens are stateless, so nothing is revoked.
func (a *Accounts) LoggedOut(ctx context.Context, id string) {
	if id == "" {
		return
	}
	a.events.Publish(ctx, newEvent(UserLoggedOut, "user", id, id, a.now(), nil))
}
