package domain

import "time"

// SatelliteKind discriminates the role-specific profile attached to an account.
type SatelliteKind string

const (
	SatelliteExpert SatelliteKind = "expert"
	SatelliteArtist SatelliteKind = "artist"
	SatelliteAdmin  SatelliteKind = "admin"
)

type ExpertProfile struct {
	ProfileID      string    `json:"id" dynamodbav:"profile_id" bson:"profile_id"`
	AccountID      string    `json:"account_id" dynamodbav:"account_id" bson:"account_id"`
	Expertise      []string  `json:"expertise" dynamodbav:"expertise" bson:"expertise"`
	Masterclasses  []string  `json:"masterclasses" dynamodbav:"masterclasses" bson:"masterclasses"`
	Education      []string  `json:"education" dynamodbav:"education" bson:"education"`
	Certifications []string  `json:"certifications" dynamodbav:"certifications" bson:"certifications"`
	About          string    `json:"about" dynamodbav:"about" bson:"about"`
	TopRated       bool      `json:"top_rated" dynamodbav:"top_rated" bson:"top_rated"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}

type ArtistProfile struct {
	ProfileID string    `json:"id" dynamodbav:"profile_id" bson:"profile_id"`
	AccountID string    `json:"account_id" dynamodbav:"account_id" bson:"account_id"`
	About     string    `json:"about" dynamodbav:"about" bson:"about"`
	Products  []string  `json:"products" dynamodbav:"products" bson:"products"`
	Portfolio []string  `json:"portfolio" dynamodbav:"portfolio" bson:"portfolio"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}

type AdminProfile struct {
	ProfileID   string    `json:"id" dynamodbav:"profile_id" bson:"profile_id"`
	AccountID   string    `json:"account_id" dynamodbav:"account_id" bson:"account_id"`
	Level       Role      `json:"level" dynamodbav:"level" bson:"level"`
	Permissions []string  `json:"permissions" dynamodbav:"permissions" bson:"permissions"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}

// RoleSatellite holds exactly one of its profile pointers, selected by Kind.
type RoleSatellite struct {
	Kind   SatelliteKind  `json:"kind"`
	Expert *ExpertProfile `json:"expert,omitempty"`
	Artist *ArtistProfile `json:"artist,omitempty"`
	Admin  *AdminProfile  `json:"admin,omitempty"`
}

// ID returns the profile id of whichever variant is set.
func (s *RoleSatellite) ID() string {
	switch s.Kind {
	case SatelliteExpert:
		return s.Expert.ProfileID
	case SatelliteArtist:
		return s.Artist.ProfileID
	case SatelliteAdmin:
		return s.Admin.ProfileID
	}
	return ""
}

// Profile returns the populated variant as an untyped value for storage marshalling.
func (s *RoleSatellite) Profile() any {
	switch s.Kind {
	case SatelliteExpert:
		return s.Expert
	case SatelliteArtist:
		return s.Artist
	case SatelliteAdmin:
		return s.Admin
	}
	return nil
}
