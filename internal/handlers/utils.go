// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/gallery/internal/auth"
)

const authCookieName = "auth_token"

var errMissingToken = errors.New("missing auth_token")

// tokenFromRequest looks for a session token in the auth cookie, then an
// Authorization bearer header, then the token query parameter.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authenticateRequest returns the session claims of r.
func authenticateRequest(r *http.Request) (*auth.Claims, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, errMissingToken
	}
	return auth.AuthenticateJWT(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
