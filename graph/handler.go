package graph

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	log "github.com/sirupsen/logrus"
)

//go:embed schema.graphql
var schemaSDL string

// Path is where the API is mounted.
const Path = "/graphql"

// Handler executes GraphQL requests posted as JSON.
type Handler struct {
	relay *relay.Handler
}

// NewHandler parses the schema against r.
func NewHandler(r *Resolver) (*Handler, error) {
	schema, err := graphql.ParseSchema(schemaSDL, r,
		graphql.MaxDepth(8),
		graphql.Logger(panicLogger{logger: r.logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return &Handler{relay: &relay.Handler{Schema: schema}}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := context.WithValue(req.Context(), responseWriterKey{}, w)
	h.relay.ServeHTTP(w, req.WithContext(ctx))
}

type responseWriterKey struct{}

// responseWriter lets resolvers set cookies on the pending response.
func responseWriter(ctx context.Context) (http.ResponseWriter, bool) {
	w, ok := ctx.Value(responseWriterKey{}).(http.ResponseWriter)
	return w, ok
}

type panicLogger struct {
	logger *log.Logger
}

func (p panicLogger) LogPanic(_ context.Context, value any) {
	p.logger.WithField("panic", fmt.Sprint(value)).Error("graphql.resolver.panic")
}
