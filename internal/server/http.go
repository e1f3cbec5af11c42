package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lox/trickster/internal/voice"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// handleRooms lists open rooms.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": s.rooms.List(),
		"games": s.sessions.Count(),
	})
}

// handleVoiceToken issues a voice channel credential for
// ?channel=<name>&uid=<slot>.
func (s *Server) handleVoiceToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.voice.Enabled() {
		http.Error(w, "voice is not configured", http.StatusServiceUnavailable)
		return
	}

	channel := r.URL.Query().Get("channel")
	uid, err := strconv.Atoi(r.URL.Query().Get("uid"))
	if err != nil {
		http.Error(w, "uid must be an integer", http.StatusBadRequest)
		return
	}

	token, err := s.voice.Issue(channel, uid)
	switch {
	case errors.Is(err, voice.ErrChannelRequired), errors.Is(err, voice.ErrInvalidUID):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("Failed to issue voice token", "error", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Ignore write errors
}
