// Package role builds the role-specific satellite record that accompanies a new account.
package role

import (
	"fmt"
	"time"

	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/id"
)

// Materializer maps a role onto the satellite profile a fresh account needs.
type Materializer struct {
	now func() time.Time
}

func NewMaterializer(now func() time.Time) *Materializer {
	if now == nil {
		now = time.Now
	}
	return &Materializer{now: now}
}

// Materialize returns the satellite for role, or nil when the role carries none.
// Nothing is persisted here; the caller writes the satellite together with the account.
func (m *Materializer) Materialize(accountID string, role domain.Role) (*domain.RoleSatellite, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id required: %w", domain.ErrValidation)
	}
	now := m.now().UTC()
	switch role {
	case domain.RoleUser:
		return nil, nil
	case domain.RoleExpert:
		return &domain.RoleSatellite{
			Kind: domain.SatelliteExpert,
			Expert: &domain.ExpertProfile{
				ProfileID:      id.At(now),
				AccountID:      accountID,
				Expertise:      []string{},
				Masterclasses:  []string{},
				Education:      []string{},
				Certifications: []string{},
				CreatedAt:      now,
			},
		}, nil
	case domain.RoleArtist:
		return &domain.RoleSatellite{
			Kind: domain.SatelliteArtist,
			Artist: &domain.ArtistProfile{
				ProfileID: id.At(now),
				AccountID: accountID,
				Products:  []string{},
				Portfolio: []string{},
				CreatedAt: now,
			},
		}, nil
	case domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleEmployee:
		return &domain.RoleSatellite{
			Kind: domain.SatelliteAdmin,
			Admin: &domain.AdminProfile{
				ProfileID:   id.At(now),
				AccountID:   accountID,
				Level:       role,
				Permissions: []string{},
				CreatedAt:   now,
			},
		}, nil
	}
	return nil, fmt.Errorf("no satellite mapping for role %q: %w", role, domain.ErrValidation)
}
