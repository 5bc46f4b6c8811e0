package domain

import "time"

const EventAccountCreated = "account.created"

// Event is an outbound domain notification, published after the fact.
type Event struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"account_id"`
	Role       Role      `json:"role"`
	Channel    Channel   `json:"channel"`
	OccurredAt time.Time `json:"occurred_at"`
}
