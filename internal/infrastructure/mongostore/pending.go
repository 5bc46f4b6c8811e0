package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atelier-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PendingRepo struct {
	coll *mongo.Collection
}

// Upsert creates or renews the record for p.Contact in one round trip.
func (r *PendingRepo) Upsert(ctx context.Context, p *domain.PendingIdentity) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"contact": p.Contact},
		pendingUpsert(p),
		options.Update().SetUpsert(true),
	)
	return err
}

// pendingUpsert leaves stored profile fields alone when p carries empty ones.
func pendingUpsert(p *domain.PendingIdentity) bson.M {
	set := bson.M{
		"channel":        p.Channel,
		"purpose":        p.Purpose,
		"otp_code":       p.OTPCode,
		"otp_expires_at": p.OTPExpiresAt,
		"updated_at":     p.UpdatedAt,
	}
	optional := map[string]string{
		"name":          p.Name,
		"password_hash": p.PasswordHash,
		"role":          string(p.Role),
		"asset_key":     p.AssetKey,
	}
	for k, v := range optional {
		if v != "" {
			set[k] = v
		}
	}
	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": p.CreatedAt},
	}
}

func (r *PendingRepo) RenewCode(ctx context.Context, contact, code string, expiresAt time.Time) (*domain.PendingIdentity, error) {
	var p domain.PendingIdentity
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"contact": contact},
		bson.M{"$set": bson.M{"otp_code": code, "otp_expires_at": expiresAt, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PendingRepo) GetByContact(ctx context.Context, contact string) (*domain.PendingIdentity, error) {
	var p domain.PendingIdentity
	err := r.coll.FindOne(ctx, bson.M{"contact": contact}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PendingRepo) DeleteByContact(ctx context.Context, contact string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"contact": contact})
	return err
}
