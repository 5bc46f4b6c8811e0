// Package onboarding owns the pending-identity lifecycle: issuing and renewing
// codes, verifying them, and turning a verified registration into an account.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/application/events"
	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/metrics"
	"github.com/atelier-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type RegistrationRequest struct {
	Channel     domain.Channel `json:"-"`
	Name        string         `json:"name" validate:"required,max=100"`
	Email       string         `json:"email" validate:"omitempty,email"`
	PhoneNumber string         `json:"phone_number" validate:"omitempty,e164"`
	Password    string         `json:"password" validate:"required,min=6,max=72"`
	Role        string         `json:"role"`
	Asset       *media.Asset   `json:"-"`
}

type PasswordResetRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// Issued describes a code that has just been generated and handed to delivery.
type Issued struct {
	Contact   string         `json:"contact"`
	Channel   domain.Channel `json:"channel"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Outcome is the result of a successful verification.
type Outcome struct {
	Account   *domain.Account
	Satellite *domain.RoleSatellite
	Token     string
	// Onboarded is true when this verification created the account.
	Onboarded bool
}

type Service interface {
	RequestRegistration(ctx context.Context, req RegistrationRequest) (*Issued, error)
	ResendCode(ctx context.Context, contact domain.Contact) (*Issued, error)
	Verify(ctx context.Context, contact domain.Contact, code string) (*Outcome, error)
	RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (*Issued, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Outcome, error)
}

type accountStore interface {
	GetByContact(ctx context.Context, contact string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, contact, passwordHash string) error
}

type pendingStore interface {
	Upsert(ctx context.Context, p *domain.PendingIdentity) error
	RenewCode(ctx context.Context, contact, code string, expiresAt time.Time) (*domain.PendingIdentity, error)
	GetByContact(ctx context.Context, contact string) (*domain.PendingIdentity, error)
	DeleteByContact(ctx context.Context, contact string) error
}

type challengeStore interface {
	Get(ctx context.Context, contact string) (*domain.OtpChallenge, error)
	Delete(ctx context.Context, contact string) error
}

// registrar persists a new account, its satellite, and the removal of the
// pending identity as one unit.
type registrar interface {
	CompleteRegistration(ctx context.Context, a *domain.Account, sat *domain.RoleSatellite) error
}

type mediaService interface {
	Stage(ctx context.Context, a media.Asset) (string, error)
	Finalize(ctx context.Context, stagedKey string) (string, error)
	Discard(ctx context.Context, stagedKey string)
}

type materializer interface {
	Materialize(accountID string, role domain.Role) (*domain.RoleSatellite, error)
}

type codeGenerator interface {
	Generate() (string, time.Time, error)
}

type tokenSigner interface {
	Sign(accountID, role string) (string, error)
}

type service struct {
	accounts     accountStore
	pending      pendingStore
	challenges   challengeStore
	registrar    registrar
	media        mediaService
	materializer materializer
	codes        codeGenerator
	tokens       tokenSigner
	dispatcher   delivery.Dispatcher
	publisher    events.Publisher
	allowAdmin   bool
	now          func() time.Time
}

type ServiceDeps struct {
	AccountRepo    accountStore
	PendingRepo    pendingStore
	ChallengeRepo  challengeStore
	Registrar      registrar
	Media          mediaService
	Materializer   materializer
	Codes          codeGenerator
	JWTProvider    tokenSigner
	Dispatcher     delivery.Dispatcher
	Publisher      events.Publisher
	AllowAdminRole bool
	Now            func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts:     deps.AccountRepo,
		pending:      deps.PendingRepo,
		challenges:   deps.ChallengeRepo,
		registrar:    deps.Registrar,
		media:        deps.Media,
		materializer: deps.Materializer,
		codes:        deps.Codes,
		tokens:       deps.JWTProvider,
		dispatcher:   deps.Dispatcher,
		publisher:    deps.Publisher,
		allowAdmin:   deps.AllowAdminRole,
		now:          now,
	}
}

func (s *service) RequestRegistration(ctx context.Context, req RegistrationRequest) (*Issued, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	contact, err := contactFor(req.Channel, req.Email, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	role, err := s.registrationRole(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoAccount(ctx, contact); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	var assetKey, replacedKey string
	if req.Asset != nil && s.media != nil {
		if replacedKey, err = s.stagedAsset(ctx, contact); err != nil {
			return nil, err
		}
		if assetKey, err = s.media.Stage(ctx, *req.Asset); err != nil {
			return nil, err
		}
	}

	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &domain.PendingIdentity{
		Contact:      contact.Key(),
		Channel:      contact.Channel,
		Purpose:      domain.PurposeRegistration,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		AssetKey:     assetKey,
		OTPCode:      code,
		OTPExpiresAt: expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.pending.Upsert(ctx, p); err != nil {
		return nil, err
	}
	if replacedKey != "" {
		s.media.Discard(ctx, replacedKey)
	}
	metrics.OTPIssued.WithLabelValues(string(domain.PurposeRegistration), string(contact.Channel)).Inc()

	s.deliver(ctx, delivery.Message{
		Channel: contact.Channel, To: contact.Value, Name: req.Name,
		Code: code, Kind: delivery.KindRegistration, ExpiresAt: expiresAt,
	})
	return &Issued{Contact: contact.Value, Channel: contact.Channel, ExpiresAt: expiresAt}, nil
}

func (s *service) ResendCode(ctx context.Context, contact domain.Contact) (*Issued, error) {
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	current, err := s.pending.GetByContact(ctx, contact.Key())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPendingRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	if current.Purpose == domain.PurposeRegistration {
		// a registration record left behind by an existing account can never verify
		if err := s.ensureNoAccount(ctx, contact); err != nil {
			return nil, err
		}
	}
	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	p, err := s.pending.RenewCode(ctx, contact.Key(), code, expiresAt)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPendingRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	kind := delivery.KindRegistration
	if p.Purpose == domain.PurposePasswordReset {
		kind = delivery.KindPasswordReset
	}
	metrics.OTPIssued.WithLabelValues(string(p.Purpose), string(contact.Channel)).Inc()

	s.deliver(ctx, delivery.Message{
		Channel: contact.Channel, To: contact.Value, Name: p.Name,
		Code: code, Kind: kind, ExpiresAt: expiresAt,
	})
	return &Issued{Contact: contact.Value, Channel: contact.Channel, ExpiresAt: expiresAt}, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (*Issued, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	contact, err := contactFromEither(req.Email, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByContact(ctx, contact.Key())
	if err != nil {
		return nil, err
	}
	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.pending.Upsert(ctx, &domain.PendingIdentity{
		Contact:      contact.Key(),
		Channel:      contact.Channel,
		Purpose:      domain.PurposePasswordReset,
		OTPCode:      code,
		OTPExpiresAt: expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return nil, err
	}
	metrics.OTPIssued.WithLabelValues(string(domain.PurposePasswordReset), string(contact.Channel)).Inc()

	s.deliver(ctx, delivery.Message{
		Channel: contact.Channel, To: contact.Value, Name: acct.Name,
		Code: code, Kind: delivery.KindPasswordReset, ExpiresAt: expiresAt,
	})
	return &Issued{Contact: contact.Value, Channel: contact.Channel, ExpiresAt: expiresAt}, nil
}

func (s *service) registrationRole(req RegistrationRequest) (domain.Role, error) {
	if req.Role == "" {
		if req.Channel == domain.ChannelEmail {
			return "", fmt.Errorf("role is required: %w", domain.ErrValidation)
		}
		return domain.RoleUser, nil
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return "", err
	}
	if role.IsAdmin() && !s.allowAdmin {
		return "", fmt.Errorf("role %s cannot self-register: %w", role, domain.ErrForbidden)
	}
	return role, nil
}

func (s *service) ensureNoAccount(ctx context.Context, contact domain.Contact) error {
	_, err := s.accounts.GetByContact(ctx, contact.Key())
	switch {
	case err == nil:
		return fmt.Errorf("an account already exists for this %s: %w", contact.Channel, domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// stagedAsset returns the media key held by the contact's pending
// registration, if any.
func (s *service) stagedAsset(ctx context.Context, contact domain.Contact) (string, error) {
	p, err := s.pending.GetByContact(ctx, contact.Key())
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if p.Purpose != domain.PurposeRegistration {
		return "", nil
	}
	return p.AssetKey, nil
}

// deliver hands msg to the dispatcher. The pending write is the source of truth,
// so failures are logged and never undo it.
func (s *service) deliver(ctx context.Context, msg delivery.Message) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		slog.Warn("otp delivery failed", "channel", msg.Channel, "kind", msg.Kind, "err", err)
	}
}

func contactFor(ch domain.Channel, email, phone string) (domain.Contact, error) {
	var c domain.Contact
	switch ch {
	case domain.ChannelEmail:
		if email == "" {
			return c, fmt.Errorf("email is required: %w", domain.ErrValidation)
		}
		c = domain.EmailContact(email)
	case domain.ChannelPhone:
		if phone == "" {
			return c, fmt.Errorf("phone_number is required: %w", domain.ErrValidation)
		}
		c = domain.PhoneContact(phone)
	default:
		return c, fmt.Errorf("unknown channel %q: %w", ch, domain.ErrValidation)
	}
	return c, c.Validate()
}

func contactFromEither(email, phone string) (domain.Contact, error) {
	switch {
	case email != "" && phone != "":
		return domain.Contact{}, fmt.Errorf("provide either email or phone_number, not both: %w", domain.ErrValidation)
	case email != "":
		return contactFor(domain.ChannelEmail, email, "")
	case phone != "":
		return contactFor(domain.ChannelPhone, "", phone)
	}
	return domain.Contact{}, fmt.Errorf("email or phone_number required: %w", domain.ErrValidation)
}
