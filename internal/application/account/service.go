package account

import (
	"context"

	"github.com/atelier-api/internal/domain"
)

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	SetTwoFactor(ctx context.Context, accountID string, enabled bool) (*domain.Account, error)
}

type accountStore interface {
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	SetTwoFactor(ctx context.Context, contact string, enabled bool) error
}

type service struct {
	repo accountStore
}

type ServiceDeps struct {
	AccountRepo accountStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.AccountRepo}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

func (s *service) SetTwoFactor(ctx context.Context, accountID string, enabled bool) (*domain.Account, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.TwoFactor == enabled {
		return a, nil
	}
	if err := s.repo.SetTwoFactor(ctx, a.Contact, enabled); err != nil {
		return nil, err
	}
	a.TwoFactor = enabled
	return a, nil
}
