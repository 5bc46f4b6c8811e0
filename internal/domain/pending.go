package domain

import "time"

// Purpose tells what a pending identity is waiting to complete.
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

// PendingIdentity is an unconfirmed registration (or reset) awaiting its OTP.
// At most one exists per contact; repeat requests renew it in place.
type PendingIdentity struct {
	Contact      string    `json:"contact" dynamodbav:"contact" bson:"contact"`
	Channel      Channel   `json:"channel" dynamodbav:"channel" bson:"channel"`
	Purpose      Purpose   `json:"purpose" dynamodbav:"purpose" bson:"purpose"`
	Name         string    `json:"name,omitempty" dynamodbav:"name,omitempty" bson:"name,omitempty"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash,omitempty" bson:"password_hash,omitempty"`
	Role         Role      `json:"role,omitempty" dynamodbav:"role,omitempty" bson:"role,omitempty"`
	AssetKey     string    `json:"asset_key,omitempty" dynamodbav:"asset_key,omitempty" bson:"asset_key,omitempty"`
	OTPCode      string    `json:"-" dynamodbav:"otp_code" bson:"otp_code"`
	OTPExpiresAt time.Time `json:"otp_expires_at" dynamodbav:"otp_expires_at" bson:"otp_expires_at"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at" bson:"updated_at"`
}
