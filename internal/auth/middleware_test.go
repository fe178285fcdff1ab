package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(v *Verifier, header string) *httptest.ResponseRecorder {
	h := RequireBearer(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/health/daily", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireBearer(t *testing.T) {
	v := NewVerifier("s3cret", "")

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusForbidden},
		{"ok", "Bearer s3cret", http.StatusNoContent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.status, serve(v, c.header).Code)
		})
	}
}

func TestRequireBearer_NotConfigured(t *testing.T) {
	rec := serve(NewVerifier("", ""), "Bearer anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "API bearer token is not configured")
}

func TestVerifier_Bcrypt(t *testing.T) {
	hash, err := HashToken("hashed-token")
	require.NoError(t, err)

	v := NewVerifier("", hash)
	assert.True(t, v.Verify("hashed-token"))
	assert.False(t, v.Verify("other"))
	assert.Equal(t, http.StatusNoContent, serve(v, "Bearer hashed-token").Code)
}
