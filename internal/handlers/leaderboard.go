// internal/handlers/leaderboard.go
package handlers

import (
	"net/http"
	"strconv"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardHandler returns the top players by lifetime points.
func LeaderboardHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gs.Leaderboard == nil {
			http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
			return
		}

		limit := defaultLeaderboardLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			if n > maxLeaderboardLimit {
				n = maxLeaderboardLimit
			}
			limit = n
		}

		entries, err := gs.Leaderboard.Top(r.Context(), limit)
		if err != nil {
			gs.Logger.Warnf("leaderboard read failed: %v", err)
			http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
