package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-app/auth"
	"todo-app/domain"
	"todo-app/telemetry"
)

const (
	LoginPath = "/login"
	todosPath = "/todos"

	// CSRFContextKey is where the CSRF middleware leaves the form token.
	CSRFContextKey = "csrf"
	// CSRFFormField is the hidden form field carrying the token.
	CSRFFormField = "_csrf"

	surface = "web"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string, ttl time.Duration) (string, error)
}

type Options struct {
	SessionTTL time.Duration
	// Secure marks the session cookie Secure.
	Secure   bool
	PageSize int
	Metrics  *telemetry.AuthMetrics
	Logger   *log.Logger
}

// Handler serves the browser flows: register, login, logout and the task list.
type Handler struct {
	accounts   *domain.Accounts
	tasks      *domain.Tasks
	tokens     TokenIssuer
	sessionTTL time.Duration
	secure     bool
	pageSize   int
	metrics    *telemetry.AuthMetrics
	logger     *log.Logger
}

func NewHandler(accounts *domain.Accounts, tasks *domain.Tasks, tokens TokenIssuer, opts Options) *Handler {
	h := &Handler{
		accounts:   accounts,
		tasks:      tasks,
		tokens:     tokens,
		sessionTTL: opts.SessionTTL,
		secure:     opts.Secure,
		pageSize:   opts.PageSize,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 2 * time.Hour
	}
	if h.pageSize <= 0 {
		h.pageSize = domain.DefaultPageSize
	}
	if h.logger == nil {
		h.logger = log.StandardLogger()
	}
	return h
}

// Register mounts the web routes. Protected routes redirect anonymous
// callers to the login page.
func (h *Handler) Register(e *echo.Echo) {
	protect := auth.RequireUser(LoginPath)

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, LoginPath)
	})
	e.GET("/register", h.registerForm)
	e.POST("/register", h.register)
	e.GET(LoginPath, h.loginForm)
	e.POST(LoginPath, h.login)
	e.POST("/logout", h.logout, protect)
	e.GET(todosPath, h.listTodos, protect)
	e.POST("/todos/add", h.addTodo, protect)
	e.POST("/todos/:id/toggle", h.toggleTodo, protect)
	e.POST("/todos/:id/delete", h.deleteTodo, protect)
}

func (h *Handler) page(c echo.Context, title string) Page {
	p := Page{Title: title}
	if token, ok := c.Get(CSRFContextKey).(string); ok {
		p.CSRF = token
	}
	return p
}

func (h *Handler) registerForm(c echo.Context) error {
	return c.Render(http.StatusOK, PageRegister, h.page(c, "Register"))
}

func (h *Handler) register(c echo.Context) error {
	var form domain.Registration
	if err := c.Bind(&form); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.accounts.Register(ctx, form); err != nil {
		fields, ok := domain.FieldErrors(err)
		if !ok {
			h.metrics.Observe(surface, "register", telemetry.OutcomeError)
			return err
		}
		outcome := telemetry.OutcomeInvalid
		if errors.Is(err, domain.ErrConflict) {
			outcome = telemetry.OutcomeConflict
		}
		h.metrics.Observe(surface, "register", outcome)
		p := h.page(c, "Register")
		p.Fields = fields.ByField()
		p.Form = map[string]string{"username": form.Username}
		return c.Render(http.StatusUnprocessableEntity, PageRegister, p)
	}
	h.metrics.Observe(surface, "register", telemetry.OutcomeSuccess)
	return c.Redirect(http.StatusSeeOther, LoginPath+"?registered=1")
}

func (h *Handler) loginForm(c echo.Context) error {
	p := h.page(c, "Log in")
	if c.QueryParam("registered") != "" {
		p.Flash = "Registration successful. Please log in."
	}
	return c.Render(http.StatusOK, PageLogin, p)
}

func (h *Handler) login(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	p := h.page(c, "Log in")
	p.Form = map[string]string{"username": username}
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "Username is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		h.metrics.Observe(surface, "login", telemetry.OutcomeInvalid)
		p.Fields = fields
		return c.Render(http.StatusUnprocessableEntity, PageLogin, p)
	}

	u, err := h.accounts.Authenticate(c.Request().Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.metrics.Observe(surface, "login", telemetry.OutcomeInvalid)
			p.Error = "Invalid username or password"
			return c.Render(http.StatusUnauthorized, PageLogin, p)
		}
		h.metrics.Observe(surface, "login", telemetry.OutcomeError)
		return err
	}
	token, err := h.tokens.Issue(u.ID, h.sessionTTL)
	if err != nil {
		h.metrics.Observe(surface, "login", telemetry.OutcomeError)
		return err
	}
	auth.SetSession(c, token, h.sessionTTL, h.secure)
	h.metrics.Observe(surface, "login", telemetry.OutcomeSuccess)
	return c.Redirect(http.StatusSeeOther, todosPath)
}

func (h *Handler) logout(c echo.Context) error {
	userID, _ := auth.CurrentUserID(c)
	auth.ClearSession(c, h.secure)
	h.accounts.LoggedOut(c.Request().Context(), userID)
	return c.Redirect(http.StatusSeeOther, LoginPath)
}

func (h *Handler) listTodos(c echo.Context) error {
	skip := max(queryInt(c, "skip", 0), 0)
	take := queryInt(c, "take", h.pageSize)
	return h.renderTodos(c, http.StatusOK, skip, take, nil)
}

func (h *Handler) addTodo(c echo.Context) error {
	userID, _ := auth.CurrentUserID(c)
	text := c.FormValue("text")
	if _, err := h.tasks.Create(c.Request().Context(), userID, text); err != nil {
		fields, ok := domain.FieldErrors(err)
		if !ok {
			return err
		}
		return h.renderTodos(c, http.StatusUnprocessableEntity, 0, h.pageSize, func(p *Page) {
			p.Fields = fields.ByField()
			p.Form = map[string]string{"text": text}
		})
	}
	return c.Redirect(http.StatusSeeOther, todosPath)
}

func (h *Handler) toggleTodo(c echo.Context) error {
	userID, _ := auth.CurrentUserID(c)
	if _, err := h.tasks.Toggle(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, todosPath)
}

func (h *Handler) deleteTodo(c echo.Context) error {
	userID, _ := auth.CurrentUserID(c)
	if err := h.tasks.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, todosPath)
}

// renderTodos renders one window of the caller's tasks. A valid token for
// a user the store no longer knows is treated as logged out.
func (h *Handler) renderTodos(c echo.Context, status, skip, take int, decorate func(*Page)) error {
	if take <= 0 {
		take = h.pageSize
	}
	take = h.tasks.PageSize(take)
	ctx := c.Request().Context()
	userID, _ := auth.CurrentUserID(c)
	u, err := h.accounts.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			auth.ClearSession(c, h.secure)
			return c.Redirect(http.StatusSeeOther, LoginPath)
		}
		return err
	}
	tasks, err := h.tasks.List(ctx, userID, skip, take)
	if err != nil {
		return err
	}
	p := h.page(c, "Tasks")
	p.Username = u.Username
	p.Tasks = tasks
	p.Take = take
	p.HasPrev = skip > 0
	p.PrevSkip = max(skip-take, 0)
	p.HasNext = len(tasks) == take
	p.NextSkip = skip + len(tasks)
	if decorate != nil {
		decorate(&p)
	}
	return c.Render(status, PageTodos, p)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
