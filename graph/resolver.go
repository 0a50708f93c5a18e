// Package graph serves the GraphQL API over the account and task services.
package graph

import (
	"context"
	"errors"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	log "github.com/sirupsen/logrus"

	"todo-app/auth"
	"todo-app/domain"
	"todo-app/telemetry"
)

const surface = "graphql"

// TokenIssuer signs API tokens.
type TokenIssuer interface {
	Issue(userID string, ttl time.Duration) (string, error)
}

type Options struct {
	TokenTTL time.Duration
	// Secure matches the Secure flag used for the web session cookie.
	Secure  bool
	Metrics *telemetry.AuthMetrics
	Logger  *log.Logger
}

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	accounts *domain.Accounts
	tasks    *domain.Tasks
	tokens   TokenIssuer
	tokenTTL time.Duration
	secure   bool
	metrics  *telemetry.AuthMetrics
	logger   *log.Logger
}

func NewResolver(accounts *domain.Accounts, tasks *domain.Tasks, tokens TokenIssuer, opts Options) *Resolver {
	r := &Resolver{
		accounts: accounts,
		tasks:    tasks,
		tokens:   tokens,
		tokenTTL: opts.TokenTTL,
		secure:   opts.Secure,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if r.tokenTTL <= 0 {
		r.tokenTTL = 7 * 24 * time.Hour
	}
	if r.logger == nil {
		r.logger = log.StandardLogger()
	}
	return r
}

func currentUser(ctx context.Context) string {
	id, _ := auth.UserID(ctx)
	return id
}

func (r *Resolver) Todos(ctx context.Context, args struct{ Skip, Take *int32 }) ([]*todoResolver, error) {
	var skip, take int
	if args.Skip != nil {
		skip = int(*args.Skip)
	}
	if args.Take != nil {
		take = int(*args.Take)
	}
	tasks, err := r.tasks.List(ctx, currentUser(ctx), skip, take)
	if err != nil {
		return nil, toResolverError(err, r.logger, "todos")
	}
	out := make([]*todoResolver, len(tasks))
	for i := range tasks {
		out[i] = &todoResolver{t: tasks[i]}
	}
	return out, nil
}

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	id := currentUser(ctx)
	if id == "" {
		return nil, nil
	}
	u, err := r.accounts.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, toResolverError(err, r.logger, "me")
	}
	return &userResolver{u: u}, nil
}

type credentials struct {
	Username string
	Password string
}

func (r *Resolver) Register(ctx context.Context, args credentials) (*userResolver, error) {
	u, err := r.accounts.Register(ctx, domain.Registration{
		Username:        args.Username,
		Password:        args.Password,
		ConfirmPassword: args.Password,
	})
	if err != nil {
		r.metrics.Observe(surface, "register", registerOutcome(err))
		return nil, toResolverError(err, r.logger, "register")
	}
	r.metrics.Observe(surface, "register", telemetry.OutcomeSuccess)
	return &userResolver{u: u}, nil
}

func registerOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return telemetry.OutcomeConflict
	case errors.As(err, new(domain.ValidationErrors)):
		return telemetry.OutcomeInvalid
	}
	return telemetry.OutcomeError
}

func (r *Resolver) Login(ctx context.Context, args credentials) (string, error) {
	u, err := r.accounts.Authenticate(ctx, args.Username, args.Password)
	if err != nil {
		outcome := telemetry.OutcomeError
		if errors.Is(err, domain.ErrInvalidCredentials) {
			outcome = telemetry.OutcomeInvalid
		}
		r.metrics.Observe(surface, "login", outcome)
		return "", toResolverError(err, r.logger, "login")
	}
	token, err := r.tokens.Issue(u.ID, r.tokenTTL)
	if err != nil {
		r.metrics.Observe(surface, "login", telemetry.OutcomeError)
		return "", toResolverError(err, r.logger, "login")
	}
	r.metrics.Observe(surface, "login", telemetry.OutcomeSuccess)
	return token, nil
}

func (r *Resolver) AddTodo(ctx context.Context, args struct{ Text string }) (*todoResolver, error) {
	t, err := r.tasks.Create(ctx, currentUser(ctx), args.Text)
	if err != nil {
		return nil, toResolverError(err, r.logger, "addTodo")
	}
	return &todoResolver{t: t}, nil
}

func (r *Resolver) ToggleTodo(ctx context.Context, args struct{ ID graphql.ID }) (*todoResolver, error) {
	t, err := r.tasks.Toggle(ctx, currentUser(ctx), string(args.ID))
	if err != nil {
		return nil, toResolverError(err, r.logger, "toggleTodo")
	}
	return &todoResolver{t: t}, nil
}

func (r *Resolver) DeleteTodo(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	if err := r.tasks.Delete(ctx, currentUser(ctx), string(args.ID)); err != nil {
		return false, toResolverError(err, r.logger, "deleteTodo")
	}
	return true, nil
}

func (r *Resolver) Logout(ctx context.Context) (bool, error) {
	id := currentUser(ctx)
	if id == "" {
		return false, toResolverError(domain.ErrUnauthorized, r.logger, "logout")
	}
	if w, ok := responseWriter(ctx); ok {
		http.SetCookie(w, auth.ExpiredSessionCookie(r.secure))
	}
	r.accounts.LoggedOut(ctx, id)
	return true, nil
}

type todoResolver struct {
	t domain.Task
}

func (t *todoResolver) ID() graphql.ID    { return graphql.ID(t.t.ID) }
func (t *todoResolver) Text() string      { return t.t.Text }
func (t *todoResolver) Completed() bool   { return t.t.Completed }
func (t *todoResolver) CreatedAt() string { return t.t.CreatedAt.UTC().Format(time.RFC3339Nano) }

type userResolver struct {
	u domain.User
}

func (u *userResolver) ID() graphql.ID   { return graphql.ID(u.u.ID) }
func (u *userResolver) Username() string { return u.u.Username }
