package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/atelier-api/internal/domain"
)

// PendingRepo stores unconfirmed identities. PK: contact.
// Records are never expired by the table; stale ones linger until renewed or completed.
type PendingRepo struct {
	client    api
	tableName string
}

func NewPendingRepo(client api, tableName string) *PendingRepo {
	return &PendingRepo{client: client, tableName: tableName}
}

// Upsert creates the record or renews it in place in a single UpdateItem.
// Empty profile fields on p leave the stored values alone.
func (r *PendingRepo) Upsert(ctx context.Context, p *domain.PendingIdentity) error {
	updates := map[string]interface{}{
		fieldChannel:      p.Channel,
		fieldPurpose:      p.Purpose,
		fieldOTPCode:      p.OTPCode,
		fieldOTPExpiresAt: p.OTPExpiresAt,
		fieldUpdatedAt:    p.UpdatedAt,
	}
	if p.Name != "" {
		updates[fieldName] = p.Name
	}
	if p.PasswordHash != "" {
		updates[fieldPasswordHash] = p.PasswordHash
	}
	if p.Role != "" {
		updates[fieldRole] = p.Role
	}
	if p.AssetKey != "" {
		updates[fieldAssetKey] = p.AssetKey
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	created, err := attributevalue.Marshal(p.CreatedAt)
	if err != nil {
		return fmt.Errorf("marshal created_at: %w", err)
	}
	ue.Names["#created"] = fieldCreatedAt
	ue.Values[":created"] = created

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldContact, p.Contact),
		UpdateExpression:          aws.String(ue.Expr + ", #created = if_not_exists(#created, :created)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// RenewCode replaces the code and expiry of an existing record and returns it.
func (r *PendingRepo) RenewCode(ctx context.Context, contact, code string, expiresAt time.Time) (*domain.PendingIdentity, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldOTPCode:      code,
		fieldOTPExpiresAt: expiresAt,
		fieldUpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldContact
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldContact, contact),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p domain.PendingIdentity
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PendingRepo) GetByContact(ctx context.Context, contact string) (*domain.PendingIdentity, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldContact, contact),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending identity not found: %w", domain.ErrNotFound)
	}
	var p domain.PendingIdentity
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PendingRepo) DeleteByContact(ctx context.Context, contact string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldContact, contact),
	})
	return err
}
