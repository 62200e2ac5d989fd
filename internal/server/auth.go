package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/semdex/internal/logging"
)

// authMiddleware guards the protected API routes with a static Bearer token:
//
//	Authorization: Bearer <apiKey>
//
// An empty apiKey disables the check entirely; the server logs that once at
// startup rather than per request. Rejections carry a WWW-Authenticate
// challenge, and the presented token value is never written to the log.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	key := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			logging.FromContext(r.Context()).Warn("auth: no bearer token",
				slog.String("path", r.URL.Path))
			unauthorized(w, `Bearer realm="semdex"`, "authorization required")
		case subtle.ConstantTimeCompare([]byte(token), key) != 1:
			logging.FromContext(r.Context()).Warn("auth: token rejected",
				slog.String("path", r.URL.Path))
			unauthorized(w, `Bearer realm="semdex" error="invalid_token"`, "invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// unauthorized writes a 401 with the given WWW-Authenticate challenge.
func unauthorized(w http.ResponseWriter, challenge, msg string) {
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, msg, http.StatusUnauthorized)
}

// bearerToken pulls the credential out of an "Authorization: Bearer <token>"
// header. An absent header or a non-bearer scheme yields the empty string.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
