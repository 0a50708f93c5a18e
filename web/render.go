// Package web serves the server-rendered HTML interface.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/labstack/echo/v4"

	"todo-app/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page template names.
const (
	PageLogin    = "login.html"
	PageRegister = "register.html"
	PageTodos    = "todos.html"
	PageError    = "error.html"
)

// Assets returns the embedded static files rooted at the static directory.
func Assets() fs.FS {
	return echo.MustSubFS(staticFS, "static")
}

// Page is the data passed to every template.
type Page struct {
	Title    string
	CSRF     string
	Username string
	Flash    string
	Error    string
	Fields   map[string]string
	Form     map[string]string

	Tasks    []domain.Task
	Take     int
	HasPrev  bool
	HasNext  bool
	PrevSkip int
	NextSkip int

	Status  int
	Message string
	Detail  string
}

var funcs = template.FuncMap{
	"rfc3339":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"shortTime": func(t time.Time) string { return t.Local().Format("Jan 2 15:04") },
}

// Renderer implements echo.Renderer over the embedded templates. Each page
// is parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{PageLogin, PageRegister, PageTodos, PageError} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// RenderError writes the error page. Detail is shown verbatim when non-empty.
func RenderError(c echo.Context, status int, message, detail string) error {
	p := Page{
		Title:   "Error",
		Status:  status,
		Message: message,
		Detail:  detail,
	}
	if token, ok := c.Get(CSRFContextKey).(string); ok {
		p.CSRF = token
	}
	return c.Render(status, PageError, p)
}
