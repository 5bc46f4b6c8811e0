// Package session handles password login, including the second-factor challenge.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/metrics"
	"github.com/atelier-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Channel     domain.Channel `json:"-"`
	Email       string         `json:"email" validate:"omitempty,email"`
	PhoneNumber string         `json:"phone_number" validate:"omitempty,e164"`
	Password    string         `json:"password" validate:"required"`
}

// LoginResult carries either a session token or notice that a challenge was sent.
type LoginResult struct {
	Account         *domain.Account
	Token           string
	ChallengeIssued bool
	ExpiresAt       time.Time
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
}

type accountStore interface {
	GetByContact(ctx context.Context, contact string) (*domain.Account, error)
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.OtpChallenge) error
}

type codeGenerator interface {
	Generate() (string, time.Time, error)
}

type tokenSigner interface {
	Sign(accountID, role string) (string, error)
}

type service struct {
	accounts   accountStore
	challenges challengeStore
	codes      codeGenerator
	tokens     tokenSigner
	dispatcher delivery.Dispatcher
	now        func() time.Time
}

type ServiceDeps struct {
	AccountRepo   accountStore
	ChallengeRepo challengeStore
	Codes         codeGenerator
	JWTProvider   tokenSigner
	Dispatcher    delivery.Dispatcher
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts:   deps.AccountRepo,
		challenges: deps.ChallengeRepo,
		codes:      deps.Codes,
		tokens:     deps.JWTProvider,
		dispatcher: deps.Dispatcher,
		now:        now,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	contact, err := loginContact(req)
	if err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByContact(ctx, contact.Key())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	if !acct.TwoFactor {
		token, err := s.tokens.Sign(acct.AccountID, acct.Role.String())
		if err != nil {
			return nil, err
		}
		return &LoginResult{Account: acct, Token: token}, nil
	}

	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	// Put replaces any earlier challenge, so a new login renews the code.
	if err := s.challenges.Put(ctx, &domain.OtpChallenge{
		Contact:   acct.Contact,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	metrics.OTPIssued.WithLabelValues(delivery.KindLogin, string(contact.Channel)).Inc()

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, delivery.Message{
			Channel: contact.Channel, To: contact.Value, Name: acct.Name,
			Code: code, Kind: delivery.KindLogin, ExpiresAt: expiresAt,
		}); err != nil {
			slog.Warn("otp delivery failed", "channel", contact.Channel, "kind", delivery.KindLogin, "err", err)
		}
	}
	return &LoginResult{ChallengeIssued: true, ExpiresAt: expiresAt}, nil
}

func loginContact(req LoginRequest) (domain.Contact, error) {
	var c domain.Contact
	switch req.Channel {
	case domain.ChannelEmail:
		c = domain.EmailContact(req.Email)
	case domain.ChannelPhone:
		c = domain.PhoneContact(req.PhoneNumber)
	default:
		return c, fmt.Errorf("unknown channel %q: %w", req.Channel, domain.ErrValidation)
	}
	if c.Value == "" {
		return c, fmt.Errorf("%s is required: %w", req.Channel, domain.ErrValidation)
	}
	return c, c.Validate()
}
