package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelier-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var errPendingConsumed = errors.New("pending registration already consumed")

// Registrar completes registrations inside a multi-document transaction.
type Registrar struct {
	client *mongo.Client
	db     *mongo.Database
}

func (r *Registrar) CompleteRegistration(ctx context.Context, a *domain.Account, sat *domain.RoleSatellite) error {
	satColl, err := satelliteCollection(sat)
	if err != nil {
		return err
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.db.Collection(collPending).DeleteOne(sc, bson.M{
			"contact": a.Contact,
			"purpose": domain.PurposeRegistration,
		})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, errPendingConsumed
		}
		if _, err := r.db.Collection(collAccounts).InsertOne(sc, a); err != nil {
			return nil, err
		}
		if sat != nil {
			if _, err := r.db.Collection(satColl).InsertOne(sc, sat.Profile()); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPendingConsumed), mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("registration already completed: %w", domain.ErrConflict)
	}
	return err
}

func satelliteCollection(sat *domain.RoleSatellite) (string, error) {
	if sat == nil {
		return "", nil
	}
	switch sat.Kind {
	case domain.SatelliteExpert:
		return collExperts, nil
	case domain.SatelliteArtist:
		return collArtists, nil
	case domain.SatelliteAdmin:
		return collAdmins, nil
	}
	return "", fmt.Errorf("unknown satellite kind %q: %w", sat.Kind, domain.ErrValidation)
}
