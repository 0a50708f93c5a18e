package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken is returned by Verify for any malformed, expired or
// mis-signed token.
var ErrInvalidToken = errors.New("invalid token")

// Tokens issues and verifies HS256 session tokens carrying a user id in
// the sub claim. Verification is stateless; issued tokens cannot be revoked.
type Tokens struct {
	secret []byte
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokens creates a token service signing with secret.
func NewTokens(secret []byte, issuer string) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	return &Tokens{
		secret: secret,
		issuer: issuer,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
		now:    time.Now,
	}, nil
}

// Issue signs a token for userID that expires ttl from now.
func (t *Tokens) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id must not be empty")
	}
	now := t.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if t.issuer != "" {
		claims["iss"] = t.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, expiry and issuer and returns the embedded user id.
// The returned error wraps ErrInvalidToken and carries the reason.
func (t *Tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", invalid(errors.New("empty token"))
	}
	parsed, err := t.parser.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return "", invalid(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", invalid(errors.New("invalid claims"))
	}

	now := t.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", invalid(errors.New("token expired"))
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", invalid(errors.New("token not valid yet"))
	}
	if !claims.VerifyIssuedAt(now, false) {
		return "", invalid(errors.New("token used before issued"))
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return "", invalid(errors.New("invalid issuer"))
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", invalid(errors.New("missing sub"))
	}
	return sub, nil
}

type tokenError struct{ reason error }

func (e *tokenError) Error() string        { return ErrInvalidToken.Error() + ": " + e.reason.Error() }
func (e *tokenError) Is(target error) bool { return target == ErrInvalidToken }
func (e *tokenError) Unwrap() error        { return e.reason }

func invalid(reason error) error { return &tokenError{reason: reason} }
