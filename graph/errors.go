package graph

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"todo-app/domain"
)

// Error codes reported in extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL"
)

// resolverError carries a client-safe message and an extensions payload.
type resolverError struct {
	message string
	code    string
	fields  map[string]string
}

func (e *resolverError) Error() string { return e.message }

func (e *resolverError) Extensions() map[string]any {
	ext := map[string]any{"code": e.code}
	if len(e.fields) > 0 {
		ext["fields"] = e.fields
	}
	return ext
}

// toResolverError maps domain failures to API errors. Anything unexpected
// is logged and reported as a generic internal error.
func toResolverError(err error, logger *log.Logger, op string) error {
	if err == nil {
		return nil
	}
	if fields, ok := domain.FieldErrors(err); ok {
		code := CodeBadUserInput
		if errors.Is(err, domain.ErrConflict) {
			code = CodeConflict
		}
		return &resolverError{message: fields.Error(), code: code, fields: fields.ByField()}
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return &resolverError{message: "authentication required", code: CodeUnauthenticated}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return &resolverError{message: "invalid username or password", code: CodeUnauthenticated}
	case errors.Is(err, domain.ErrNotFound):
		return &resolverError{message: "todo not found", code: CodeNotFound}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithError(err).WithField("operation", op).Error("graphql.resolver.failed")
	return &resolverError{message: "internal server error", code: CodeInternal}
}
