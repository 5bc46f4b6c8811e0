package domain

import "time"

// OtpChallenge is a second-factor code bound to an existing account's contact.
// It lives between a password login and the matching verification.
type OtpChallenge struct {
	Contact   string    `json:"contact" dynamodbav:"contact" bson:"contact"`
	Code      string    `json:"-" dynamodbav:"code" bson:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}
