package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// RequireToken checks the Authorization bearer token against a bcrypt hash.
// An empty hash disables the check. The last accepted token is remembered so
// bcrypt runs once per token rather than once per request.
func RequireToken(tokenHash string) func(http.Handler) http.Handler {
	if tokenHash == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu       sync.Mutex
		accepted []byte
	)
	verify := func(token string) bool {
		mu.Lock()
		defer mu.Unlock()
		if accepted != nil && subtle.ConstantTimeCompare(accepted, []byte(token)) == 1 {
			return true
		}
		if bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
			return false
		}
		accepted = []byte(token)
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || !verify(token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nudge"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the token from the Authorization header, or from the
// access_token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// HashToken returns the bcrypt hash to put in the api.token_hash setting.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
