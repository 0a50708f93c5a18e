//go:build integration

package scenarios

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"todo-app/tests/integration/internal/httpclient"
)

type todo struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"createdAt"`
}

const password = "Abcd1234!"

// newClient targets API_BASE and skips when nothing is listening there.
func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	resp, err := (&http.Client{Timeout: 2 * time.Second}).Get(base + "/healthz")
	if err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	resp.Body.Close()
	return httpclient.New(base)
}

// uniqueUser returns a username that does not collide across runs.
func uniqueUser(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// signIn registers username and returns a client holding its bearer token.
func signIn(t *testing.T, username string) *httpclient.Client {
	t.Helper()
	c := newClient(t)
	var reg struct {
		Register struct{ ID string } `json:"register"`
	}
	errs, err := c.GraphQL(`mutation($u: String!, $p: String!) { register(username: $u, password: $p) { id } }`,
		map[string]any{"u": username, "p": password}, &reg)
	if err != nil || len(errs) > 0 {
		t.Fatalf("register %s: %v %v", username, err, errs)
	}
	var login struct {
		Login string `json:"login"`
	}
	errs, err = c.GraphQL(`mutation($u: String!, $p: String!) { login(username: $u, password: $p) }`,
		map[string]any{"u": username, "p": password}, &login)
	if err != nil || len(errs) > 0 || login.Login == "" {
		t.Fatalf("login %s: %v %v", username, err, errs)
	}
	c.Bearer = login.Login
	return c
}

func extensions(errs []httpclient.GraphQLError) []map[string]any {
	out := make([]map[string]any, len(errs))
	for i, e := range errs {
		out[i] = e.Extensions
	}
	return out
}
