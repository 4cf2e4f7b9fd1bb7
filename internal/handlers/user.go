// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/auth"
	"github.com/sirupsen/logrus"
)

const maxUsernameLength = 32

type guestRequest struct {
	Username string `json:"username"`
}

type guestResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// GuestHandler issues a guest session: a fresh user id signed into a JWT,
// set as the auth_token cookie and returned in the body.
func GuestHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req guestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" {
			username = "Guest"
		}
		if len(username) > maxUsernameLength {
			http.Error(w, "username too long", http.StatusBadRequest)
			return
		}

		userID := uuid.NewString()
		token, err := auth.CreateJWT(userID, username)
		if err != nil {
			logger.Errorf("failed to create guest JWT: %v", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     authCookieName,
			Value:    token,
			HttpOnly: true,
			Path:     "/",
		})
		writeJSON(w, http.StatusOK, guestResponse{ID: userID, Username: username, Token: token})
	}
}
