package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelier-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChallengeRepo struct {
	coll *mongo.Collection
}

func (r *ChallengeRepo) Put(ctx context.Context, c *domain.OtpChallenge) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"contact": c.Contact}, c, options.Replace().SetUpsert(true))
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, contact string) (*domain.OtpChallenge, error) {
	var c domain.OtpChallenge
	err := r.coll.FindOne(ctx, bson.M{"contact": contact}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChallengeRepo) Delete(ctx context.Context, contact string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"contact": contact})
	return err
}
