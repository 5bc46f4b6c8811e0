package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/atelier-api/internal/config"
	"github.com/atelier-api/internal/domain"
)

// Registrar turns a pending registration into an account in one transaction.
type Registrar struct {
	client api
	tables config.DynamoTables
}

func NewRegistrar(client api, tables config.DynamoTables) *Registrar {
	return &Registrar{client: client, tables: tables}
}

// CompleteRegistration writes the account and its satellite and consumes the
// pending record. A concurrent completion for the same contact cancels the
// transaction and is reported as a conflict.
func (r *Registrar) CompleteRegistration(ctx context.Context, a *domain.Account, sat *domain.RoleSatellite) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	purpose, err := attributevalue.Marshal(domain.PurposeRegistration)
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                aws.String(r.tables.Accounts),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
			ExpressionAttributeNames: map[string]string{"#pk": fieldContact},
		}},
		{Delete: &types.Delete{
			TableName:                 aws.String(r.tables.PendingIdentities),
			Key:                       strKey(fieldContact, a.Contact),
			ConditionExpression:       aws.String("attribute_exists(#pk) AND #p = :p"),
			ExpressionAttributeNames:  map[string]string{"#pk": fieldContact, "#p": fieldPurpose},
			ExpressionAttributeValues: map[string]types.AttributeValue{":p": purpose},
		}},
	}
	if sat != nil {
		put, err := r.satellitePut(sat)
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{Put: put})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return fmt.Errorf("registration already completed: %w", domain.ErrConflict)
	}
	return err
}

func (r *Registrar) satellitePut(sat *domain.RoleSatellite) (*types.Put, error) {
	var table string
	switch sat.Kind {
	case domain.SatelliteExpert:
		table = r.tables.Experts
	case domain.SatelliteArtist:
		table = r.tables.Artists
	case domain.SatelliteAdmin:
		table = r.tables.Admins
	default:
		return nil, fmt.Errorf("unknown satellite kind %q: %w", sat.Kind, domain.ErrValidation)
	}
	item, err := attributevalue.MarshalMap(sat.Profile())
	if err != nil {
		return nil, fmt.Errorf("marshal %s profile: %w", sat.Kind, err)
	}
	return &types.Put{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldProfileID},
	}, nil
}
