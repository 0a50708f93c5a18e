package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// SessionCookie is the cookie carrying the browser session token.
const SessionCookie = "token"

// Verifier resolves a token to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// Authenticate attaches the user id from a valid session cookie, or else from
// a valid Authorization bearer header, to the request context. Requests
// without a valid token continue unauthenticated.
func Authenticate(v Verifier, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, cand := range tokensFromRequest(c.Request()) {
				userID, err := v.Verify(cand.token)
				if err != nil {
					if logger != nil {
						logger.WithFields(log.Fields{
							"source": cand.source,
							"path":   c.Path(),
							"error":  err.Error(),
						}).Debug("auth.token.invalid")
					}
					continue
				}
				req := c.Request()
				c.SetRequest(req.WithContext(WithUserID(req.Context(), userID)))
				break
			}
			return next(c)
		}
	}
}

type candidate struct {
	token  string
	source string
}

// tokensFromRequest lists the presented tokens in precedence order.
func tokensFromRequest(req *http.Request) []candidate {
	var out []candidate
	if ck, err := req.Cookie(SessionCookie); err == nil && ck.Value != "" {
		out = append(out, candidate{token: ck.Value, source: "cookie"})
	}
	if token, err := bearerTokenFromHeader(req.Header); err == nil {
		out = append(out, candidate{token: token, source: "header"})
	}
	return out
}

// RequireUser redirects requests without an authenticated user to loginPath.
func RequireUser(loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := UserID(c.Request().Context()); !ok {
				return c.Redirect(http.StatusSeeOther, loginPath)
			}
			return next(c)
		}
	}
}

// CurrentUserID returns the authenticated user id for c.
func CurrentUserID(c echo.Context) (string, bool) {
	return UserID(c.Request().Context())
}

// SetSession writes the httpOnly session cookie.
func SetSession(c echo.Context, token string, ttl time.Duration, secure bool) {
	c.SetCookie(SessionCookieFor(token, ttl, secure))
}

// ClearSession expires the session cookie on the client.
func ClearSession(c echo.Context, secure bool) {
	c.SetCookie(ExpiredSessionCookie(secure))
}

// SessionCookieFor builds the session cookie for token.
func SessionCookieFor(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie builds a cookie that removes the session.
func ExpiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
