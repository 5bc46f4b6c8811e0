package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atelier-api/internal/application/otp"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/pkg/id"
	"github.com/atelier-api/internal/pkg/metrics"
	"github.com/atelier-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type subjectKind int

const (
	subjectNone subjectKind = iota
	subjectAccount
	subjectPending
)

// subject is what a contact currently resolves to. Exactly one of account
// and pending is set, matching kind.
type subject struct {
	kind    subjectKind
	account *domain.Account
	pending *domain.PendingIdentity
}

// Branch labels for metrics.
const (
	branchLogin      = "login"
	branchOnboarding = "onboarding"
	branchReset      = "reset"
	branchNone       = "none"
)

// resolve looks up the account first; the pending store is only consulted
// when no account exists for the contact.
func (s *service) resolve(ctx context.Context, contact domain.Contact) (subject, error) {
	acct, err := s.accounts.GetByContact(ctx, contact.Key())
	if err == nil {
		return subject{kind: subjectAccount, account: acct}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return subject{}, err
	}
	p, err := s.pending.GetByContact(ctx, contact.Key())
	if errors.Is(err, domain.ErrNotFound) {
		return subject{kind: subjectNone}, nil
	}
	if err != nil {
		return subject{}, err
	}
	if p.Purpose != domain.PurposeRegistration {
		return subject{kind: subjectNone}, nil
	}
	return subject{kind: subjectPending, pending: p}, nil
}

func (s *service) Verify(ctx context.Context, contact domain.Contact, code string) (*Outcome, error) {
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("otp is required: %w", domain.ErrValidation)
	}
	subj, err := s.resolve(ctx, contact)
	if err != nil {
		return nil, err
	}
	switch subj.kind {
	case subjectAccount:
		out, err := s.completeLogin(ctx, subj.account, code)
		record(branchLogin, err)
		return out, err
	case subjectPending:
		out, err := s.completeRegistration(ctx, subj.pending, code)
		record(branchOnboarding, err)
		return out, err
	}
	record(branchNone, domain.ErrPendingRegistrationNotFound)
	return nil, domain.ErrPendingRegistrationNotFound
}

// completeLogin consumes the second-factor challenge of an existing account.
func (s *service) completeLogin(ctx context.Context, acct *domain.Account, code string) (*Outcome, error) {
	ch, err := s.challenges.Get(ctx, acct.Contact)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := otp.Check(ch.Code, ch.ExpiresAt, code, s.now()); err != nil {
		return nil, err
	}
	if err := s.challenges.Delete(ctx, acct.Contact); err != nil {
		return nil, fmt.Errorf("consume otp challenge: %w", err)
	}
	token, err := s.tokens.Sign(acct.AccountID, acct.Role.String())
	if err != nil {
		return nil, err
	}
	return &Outcome{Account: acct, Token: token}, nil
}

// completeRegistration turns a verified pending identity into an account.
// A failed code check leaves the pending record untouched so the user can retry.
func (s *service) completeRegistration(ctx context.Context, p *domain.PendingIdentity, code string) (*Outcome, error) {
	if err := otp.Check(p.OTPCode, p.OTPExpiresAt, code, s.now()); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	acct := &domain.Account{
		AccountID:    id.At(now),
		Contact:      p.Contact,
		Channel:      p.Channel,
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Channel == domain.ChannelEmail {
		acct.Email = p.Contact
	} else {
		acct.PhoneNumber = p.Contact
	}

	sat, err := s.materializer.Materialize(acct.AccountID, p.Role)
	if err != nil {
		return nil, err
	}
	if sat != nil {
		acct.SatelliteID = sat.ID()
	}
	token, err := s.tokens.Sign(acct.AccountID, acct.Role.String())
	if err != nil {
		return nil, err
	}

	if p.AssetKey != "" && s.media != nil {
		url, err := s.media.Finalize(ctx, p.AssetKey)
		if err != nil {
			return nil, err
		}
		acct.ProfilePicture = url
	}

	// The staged object outlives a failed write so a retry can finalize it again.
	if err := s.registrar.CompleteRegistration(ctx, acct, sat); err != nil {
		return nil, err
	}
	if p.AssetKey != "" && s.media != nil {
		s.media.Discard(ctx, p.AssetKey)
	}
	metrics.AccountsCreated.WithLabelValues(acct.Role.String()).Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, domain.Event{
			Type:       domain.EventAccountCreated,
			AccountID:  acct.AccountID,
			Role:       acct.Role,
			Channel:    acct.Channel,
			OccurredAt: now,
		}); err != nil {
			slog.Warn("failed to publish account event", "account_id", acct.AccountID, "err", err)
		}
	}
	return &Outcome{Account: acct, Satellite: sat, Token: token, Onboarded: true}, nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Outcome, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	contact, err := contactFromEither(req.Email, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	out, err := s.resetPassword(ctx, contact, req.OTP, req.NewPassword)
	record(branchReset, err)
	return out, err
}

func (s *service) resetPassword(ctx context.Context, contact domain.Contact, code, newPassword string) (*Outcome, error) {
	acct, err := s.accounts.GetByContact(ctx, contact.Key())
	if err != nil {
		return nil, err
	}
	p, err := s.pending.GetByContact(ctx, contact.Key())
	if errors.Is(err, domain.ErrNotFound) || (err == nil && p.Purpose != domain.PurposePasswordReset) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := otp.Check(p.OTPCode, p.OTPExpiresAt, code, s.now()); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdatePassword(ctx, acct.Contact, string(hash)); err != nil {
		return nil, err
	}
	if err := s.pending.DeleteByContact(ctx, contact.Key()); err != nil {
		slog.Warn("failed to delete password reset record", "contact", contact.String(), "err", err)
	}
	acct.PasswordHash = string(hash)
	token, err := s.tokens.Sign(acct.AccountID, acct.Role.String())
	if err != nil {
		return nil, err
	}
	return &Outcome{Account: acct, Token: token}, nil
}

func record(branch string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidOrExpiredCode):
		outcome = "invalid_code"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, domain.ErrConflict):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	metrics.Verifications.WithLabelValues(branch, outcome).Inc()
}
