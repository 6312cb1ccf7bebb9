package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/products/compare", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	open := CORSMiddleware(nil)(next)
	assert.Equal(t, "*", preflight(open, "chrome-extension://abc").Header().Get("Access-Control-Allow-Origin"))

	restricted := CORSMiddleware([]string{"https://dashboard.example"})(next)
	assert.Equal(t, "https://dashboard.example",
		preflight(restricted, "https://dashboard.example").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight(restricted, "https://evil.example").Header().Get("Access-Control-Allow-Origin"))
}
