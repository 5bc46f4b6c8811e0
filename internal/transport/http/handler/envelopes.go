package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/atelier-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// IssuedEnvelope answers every request that sends a code.
type IssuedEnvelope struct {
	Message   string         `json:"message"`
	Contact   string         `json:"contact"`
	Channel   domain.Channel `json:"channel"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// AuthEnvelope wraps verify, login and reset responses. The token itself only
// travels in the session cookie.
type AuthEnvelope struct {
	Message         string                `json:"message,omitempty"`
	Account         *domain.Account       `json:"account,omitempty"`
	Satellite       *domain.RoleSatellite `json:"satellite,omitempty"`
	Onboarded       bool                  `json:"onboarded,omitempty"`
	ChallengeIssued bool                  `json:"challenge_issued,omitempty"`
	ExpiresAt       *time.Time            `json:"expires_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badBody
	}
	return nil
}
