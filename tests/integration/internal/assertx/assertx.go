package assertx

import "testing"

// Equal fails if want != got.
func Equal[T comparable](t *testing.T, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// ErrorCode fails unless the first GraphQL error carries code.
func ErrorCode(t *testing.T, code string, errs []map[string]any) {
	t.Helper()
	if len(errs) == 0 {
		t.Fatalf("want error %s, got none", code)
	}
	if got, _ := errs[0]["code"].(string); got != code {
		t.Fatalf("want error %s, got %v", code, errs[0])
	}
}
