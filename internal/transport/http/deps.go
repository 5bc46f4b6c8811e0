package http

import (
	"context"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/application/events"
	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/domain"
	jwtinfra "github.com/atelier-api/internal/infrastructure/jwt"
	"github.com/atelier-api/internal/transport/http/handler"
)

// AccountRepository is what the router needs from an account store.
type AccountRepository interface {
	GetByContact(ctx context.Context, contact string) (*domain.Account, error)
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, contact, passwordHash string) error
	SetTwoFactor(ctx context.Context, contact string, enabled bool) error
}

// PendingRepository is what the router needs from a pending-identity store.
type PendingRepository interface {
	Upsert(ctx context.Context, p *domain.PendingIdentity) error
	RenewCode(ctx context.Context, contact, code string, expiresAt time.Time) (*domain.PendingIdentity, error)
	GetByContact(ctx context.Context, contact string) (*domain.PendingIdentity, error)
	DeleteByContact(ctx context.Context, contact string) error
}

// ChallengeRepository is what the router needs from a second-factor challenge store.
type ChallengeRepository interface {
	Put(ctx context.Context, c *domain.OtpChallenge) error
	Get(ctx context.Context, contact string) (*domain.OtpChallenge, error)
	Delete(ctx context.Context, contact string) error
}

// Registrar completes a verified registration atomically.
type Registrar interface {
	CompleteRegistration(ctx context.Context, a *domain.Account, sat *domain.RoleSatellite) error
}

// MediaService stages and promotes profile pictures.
type MediaService interface {
	Stage(ctx context.Context, a media.Asset) (string, error)
	Finalize(ctx context.Context, stagedKey string) (string, error)
	Discard(ctx context.Context, stagedKey string)
}

// Deps holds the backends the router wires into services. Media and
// AttemptLimiter may be nil.
type Deps struct {
	AccountRepo    AccountRepository
	PendingRepo    PendingRepository
	ChallengeRepo  ChallengeRepository
	Registrar      Registrar
	Media          MediaService
	Dispatcher     delivery.Dispatcher
	Publisher      events.Publisher
	JWTProvider    *jwtinfra.Provider
	AttemptLimiter handler.AttemptLimiter
	Now            func() time.Time
}
