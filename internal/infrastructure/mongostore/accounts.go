package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelier-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AccountRepo struct {
	coll *mongo.Collection
}

func (r *AccountRepo) GetByContact(ctx context.Context, contact string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"contact": contact})
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"account_id": accountID})
}

func (r *AccountRepo) UpdatePassword(ctx context.Context, contact, passwordHash string) error {
	return r.set(ctx, contact, bson.M{"password_hash": passwordHash})
}

func (r *AccountRepo) SetTwoFactor(ctx context.Context, contact string, enabled bool) error {
	return r.set(ctx, contact, bson.M{"two_factor": enabled})
}

func (r *AccountRepo) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var a domain.Account
	err := r.coll.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) set(ctx context.Context, contact string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"contact": contact}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return nil
}
