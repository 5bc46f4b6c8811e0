package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Channel is the delivery channel a contact identifier belongs to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Contact identifies a person by an email address or a phone number.
// Email and phone contacts are never merged, even for the same person.
type Contact struct {
	Channel Channel
	Value   string
}

// EmailContact normalizes an email address into a Contact.
func EmailContact(email string) Contact {
	return Contact{Channel: ChannelEmail, Value: strings.ToLower(strings.TrimSpace(email))}
}

// PhoneContact normalizes a phone number into a Contact.
func PhoneContact(phone string) Contact {
	return Contact{Channel: ChannelPhone, Value: strings.TrimSpace(phone)}
}

// Key is the storage key shared by accounts, pending identities and challenges.
func (c Contact) Key() string { return c.Value }

func (c Contact) String() string { return string(c.Channel) + ":" + c.Value }

// Validate checks the contact value against its channel format.
func (c Contact) Validate() error {
	switch c.Channel {
	case ChannelEmail:
		if c.Value == "" || !strings.Contains(c.Value, "@") {
			return fmt.Errorf("invalid email address: %w", ErrValidation)
		}
	case ChannelPhone:
		if !e164.MatchString(c.Value) {
			return fmt.Errorf("phone number must be in E.164 format: %w", ErrValidation)
		}
	default:
		return fmt.Errorf("unknown channel %q: %w", c.Channel, ErrValidation)
	}
	return nil
}
