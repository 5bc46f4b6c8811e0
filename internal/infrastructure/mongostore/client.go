// Package mongostore is the MongoDB store backend.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collAccounts   = "accounts"
	collPending    = "pending_identities"
	collChallenges = "otp_challenges"
	collExperts    = "experts"
	collArtists    = "artists"
	collAdmins     = "admins"
)

// Connect dials MongoDB and pings it before returning the client.
// Registration completion uses transactions, so the server must be a replica set.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	slog.Info("connected to mongodb")
	return client, nil
}

// Store groups the collections of one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Accounts() *AccountRepo     { return &AccountRepo{coll: s.db.Collection(collAccounts)} }
func (s *Store) Pending() *PendingRepo      { return &PendingRepo{coll: s.db.Collection(collPending)} }
func (s *Store) Challenges() *ChallengeRepo { return &ChallengeRepo{coll: s.db.Collection(collChallenges)} }
func (s *Store) Registrar() *Registrar      { return &Registrar{client: s.client, db: s.db} }

// EnsureIndexes creates the unique contact and account id indexes.
// Existing indexes with the same definition are left untouched.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D, name string) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetName(name)}
	}
	plan := map[string][]mongo.IndexModel{
		collAccounts: {
			unique(bson.D{{Key: "contact", Value: 1}}, "uniq_contact"),
			unique(bson.D{{Key: "account_id", Value: 1}}, "uniq_account_id"),
		},
		collPending:    {unique(bson.D{{Key: "contact", Value: 1}}, "uniq_contact")},
		collChallenges: {unique(bson.D{{Key: "contact", Value: 1}}, "uniq_contact")},
	}
	for _, name := range []string{collExperts, collArtists, collAdmins} {
		plan[name] = []mongo.IndexModel{
			unique(bson.D{{Key: "profile_id", Value: 1}}, "uniq_profile_id"),
			{Keys: bson.D{{Key: "account_id", Value: 1}}, Options: options.Index().SetName("idx_account_id")},
		}
	}
	for coll, models := range plan {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
