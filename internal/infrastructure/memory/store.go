// Package memory is a process-local store backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atelier-api/internal/domain"
)

// Store holds every collection behind one mutex so registration completion
// is atomic the same way a database transaction is.
type Store struct {
	mu         sync.Mutex
	accounts   map[string]domain.Account // by contact
	pending    map[string]domain.PendingIdentity
	challenges map[string]domain.OtpChallenge
	satellites map[string]domain.RoleSatellite // by account id
}

func NewStore() *Store {
	return &Store{
		accounts:   make(map[string]domain.Account),
		pending:    make(map[string]domain.PendingIdentity),
		challenges: make(map[string]domain.OtpChallenge),
		satellites: make(map[string]domain.RoleSatellite),
	}
}

func (s *Store) Accounts() *AccountRepo     { return &AccountRepo{s: s} }
func (s *Store) Pending() *PendingRepo      { return &PendingRepo{s: s} }
func (s *Store) Challenges() *ChallengeRepo { return &ChallengeRepo{s: s} }

// CompleteRegistration inserts the account and satellite and removes the pending identity.
func (s *Store) CompleteRegistration(_ context.Context, a *domain.Account, sat *domain.RoleSatellite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Contact]; ok {
		return fmt.Errorf("account already exists: %w", domain.ErrConflict)
	}
	if _, ok := s.pending[a.Contact]; !ok {
		return fmt.Errorf("pending identity already consumed: %w", domain.ErrConflict)
	}
	s.accounts[a.Contact] = *a
	if sat != nil {
		s.satellites[a.AccountID] = *sat
	}
	delete(s.pending, a.Contact)
	return nil
}

// Satellite returns the role satellite stored for an account.
func (s *Store) Satellite(accountID string) (*domain.RoleSatellite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sat, ok := s.satellites[accountID]
	if !ok {
		return nil, false
	}
	return &sat, true
}

// SatelliteCount is the number of stored satellites across all kinds.
func (s *Store) SatelliteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.satellites)
}

type AccountRepo struct{ s *Store }

// Put inserts an account directly; it fails if the contact is taken.
func (r *AccountRepo) Put(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.Contact]; ok {
		return fmt.Errorf("account already exists: %w", domain.ErrConflict)
	}
	r.s.accounts[a.Contact] = *a
	return nil
}

func (r *AccountRepo) GetByContact(_ context.Context, contact string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[contact]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (r *AccountRepo) GetByID(_ context.Context, accountID string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.AccountID == accountID {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
}

func (r *AccountRepo) UpdatePassword(_ context.Context, contact, passwordHash string) error {
	return r.update(contact, func(a *domain.Account) { a.PasswordHash = passwordHash })
}

func (r *AccountRepo) SetTwoFactor(_ context.Context, contact string, enabled bool) error {
	return r.update(contact, func(a *domain.Account) { a.TwoFactor = enabled })
}

func (r *AccountRepo) update(contact string, fn func(*domain.Account)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[contact]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	fn(&a)
	a.UpdatedAt = time.Now().UTC()
	r.s.accounts[contact] = a
	return nil
}

type PendingRepo struct{ s *Store }

// Upsert overwrites the non-empty fields of p onto any existing record,
// keeping the original creation time.
func (r *PendingRepo) Upsert(_ context.Context, p *domain.PendingIdentity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.pending[p.Contact]
	if !ok {
		r.s.pending[p.Contact] = *p
		return nil
	}
	cur.Channel = p.Channel
	cur.Purpose = p.Purpose
	cur.OTPCode = p.OTPCode
	cur.OTPExpiresAt = p.OTPExpiresAt
	cur.UpdatedAt = p.UpdatedAt
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.PasswordHash != "" {
		cur.PasswordHash = p.PasswordHash
	}
	if p.Role != "" {
		cur.Role = p.Role
	}
	if p.AssetKey != "" {
		cur.AssetKey = p.AssetKey
	}
	r.s.pending[p.Contact] = cur
	return nil
}

func (r *PendingRepo) RenewCode(_ context.Context, contact, code string, expiresAt time.Time) (*domain.PendingIdentity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pending[contact]
	if !ok {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	p.OTPCode = code
	p.OTPExpiresAt = expiresAt
	p.UpdatedAt = time.Now().UTC()
	r.s.pending[contact] = p
	return &p, nil
}

func (r *PendingRepo) GetByContact(_ context.Context, contact string) (*domain.PendingIdentity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pending[contact]
	if !ok {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

func (r *PendingRepo) DeleteByContact(_ context.Context, contact string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.pending, contact)
	return nil
}

// Count is the number of pending identities, expired ones included.
func (r *PendingRepo) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.pending)
}

type ChallengeRepo struct{ s *Store }

func (r *ChallengeRepo) Put(_ context.Context, c *domain.OtpChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.challenges[c.Contact] = *c
	return nil
}

func (r *ChallengeRepo) Get(_ context.Context, contact string) (*domain.OtpChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.challenges[contact]
	if !ok {
		return nil, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *ChallengeRepo) Delete(_ context.Context, contact string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.challenges, contact)
	return nil
}
