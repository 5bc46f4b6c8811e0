package domain

import "time"

// Account is a confirmed identity. Exactly one exists per contact.
type Account struct {
	AccountID      string    `json:"id" dynamodbav:"account_id" bson:"account_id"`
	Contact        string    `json:"-" dynamodbav:"contact" bson:"contact"`
	Channel        Channel   `json:"channel" dynamodbav:"channel" bson:"channel"`
	Email          string    `json:"email,omitempty" dynamodbav:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty" dynamodbav:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Name           string    `json:"name" dynamodbav:"name" bson:"name"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash" bson:"password_hash"`
	Role           Role      `json:"role" dynamodbav:"role" bson:"role"`
	ProfilePicture string    `json:"profile_picture,omitempty" dynamodbav:"profile_picture,omitempty" bson:"profile_picture,omitempty"`
	TwoFactor      bool      `json:"two_factor" dynamodbav:"two_factor" bson:"two_factor"`
	SatelliteID    string    `json:"satellite_id,omitempty" dynamodbav:"satellite_id,omitempty" bson:"satellite_id,omitempty"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at" bson:"updated_at"`
}

// ContactOf rebuilds the Contact the account was registered with.
func (a *Account) ContactOf() Contact {
	return Contact{Channel: a.Channel, Value: a.Contact}
}
