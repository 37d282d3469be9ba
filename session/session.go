// Package session stores opaque login tokens in a single DynamoDB table.
//
// A token is keyed by its value and indexed by its owner so that every
// token of a user can be found without a scan. Expiry is checked on every
// read; the table's TTL sweep only reclaims space and may lag by hours.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/singletable/entity"
	"github.com/jacentio/singletable/store"
)

// DefaultTTL is the token lifetime callers use when they have no policy of
// their own.
const DefaultTTL = 24 * time.Hour

// Schema returns the session table layout: hash key SessionToken, a
// keys-only index on UserName, and TTL on the TTL attribute.
func Schema() store.TableSchema {
	return store.TableSchema{
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(entity.AttrSessionToken), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(entity.AttrUserName), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(entity.AttrSessionToken), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(entity.SessionUserIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(entity.AttrUserName), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
			},
		},
		TTLAttribute: entity.AttrTTL,
	}
}

// Repository reads and writes session tokens.
type Repository struct {
	client store.Client
	config store.Config
	admin  *store.Admin

	nowFunc  func() time.Time
	newToken func() string
}

// New creates a session repository for config.TableName.
func New(client store.Client, config store.Config) *Repository {
	config = config.Validated()
	return &Repository{
		client:   client,
		config:   config,
		admin:    store.NewAdmin(client, config),
		nowFunc:  time.Now,
		newToken: uuid.NewString,
	}
}

type addTokenInput struct {
	Username string        `validate:"required"`
	TTL      time.Duration `validate:"gte=0"`
}

// AddToken issues a new token for username that expires ttl from now.
// A ttl of zero yields a token that is already expired.
//
// The write is conditional on the token not existing; a collision returns
// store.ErrConflict and nothing is overwritten.
func (r *Repository) AddToken(ctx context.Context, username string, ttl time.Duration) (string, error) {
	if err := store.Validate(addTokenInput{Username: username, TTL: ttl}); err != nil {
		return "", fmt.Errorf("add token: %w", err)
	}

	now := r.nowFunc()
	tok := entity.SessionToken{
		Token:     r.newToken(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.config.TableName),
		Item:                tok.Item(),
		ConditionExpression: aws.String("attribute_not_exists(#token)"),
		ExpressionAttributeNames: map[string]string{
			"#token": entity.AttrSessionToken,
		},
	})
	if err = store.MapError("add token", err); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return "", fmt.Errorf("add token: %w: token already issued", store.ErrConflict)
		}
		return "", err
	}
	return tok.Token, nil
}

// GetToken returns the token, or nil if it does not exist or has expired.
func (r *Repository) GetToken(ctx context.Context, token string) (*entity.SessionToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.config.TableName),
		Key:            entity.SessionTokenKey(token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, store.MapError("get token", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	now := r.nowFunc()
	if store.IsExpired(out.Item, entity.AttrTTL, now) {
		return nil, nil
	}
	tok, err := entity.DecodeSessionToken(out.Item)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if tok.Expired(now) {
		return nil, nil
	}
	return &tok, nil
}

// DeleteToken removes a token. Deleting a missing token is not an error.
func (r *Repository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.config.TableName),
		Key:       entity.SessionTokenKey(token),
	})
	return store.MapError("delete token", err)
}

// DeleteUserTokens deletes every token owned by username and returns how
// many were deleted. The deletes are independent: on failure the count of
// tokens already deleted is returned with the error.
//
// The user index is eventually consistent, so a token issued concurrently
// may survive.
func (r *Repository) DeleteUserTokens(ctx context.Context, username string) (int, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.config.TableName),
		IndexName:              aws.String(entity.SessionUserIndex),
		KeyConditionExpression: aws.String("#user = :user"),
		ExpressionAttributeNames: map[string]string{
			"#user": entity.AttrUserName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: username},
		},
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, store.MapError("delete user tokens", err)
		}
		for _, item := range page.Items {
			tok, err := entity.DecodeSessionTokenKeys(item)
			if err != nil {
				return deleted, fmt.Errorf("delete user tokens: %w", err)
			}
			if err := r.DeleteToken(ctx, tok.Token); err != nil {
				return deleted, fmt.Errorf("delete user tokens: %w", err)
			}
			deleted++
		}
	}

	r.config.Logger.Info("deleted user tokens",
		"table", r.config.TableName,
		"user", username,
		"count", deleted,
	)
	return deleted, nil
}

// ListAll returns every raw item in the table. It scans the whole table and
// is meant for debugging only.
func (r *Repository) ListAll(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.config.TableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, store.MapError("list all", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// CreateTable creates the session table. It is safe to call when the table
// already exists.
func (r *Repository) CreateTable(ctx context.Context) error {
	return r.admin.CreateTable(ctx, Schema())
}

// DeleteTable deletes the session table.
func (r *Repository) DeleteTable(ctx context.Context) (*types.TableDescription, error) {
	return r.admin.DeleteTable(ctx)
}

// DescribeTable returns the session table metadata.
func (r *Repository) DescribeTable(ctx context.Context) (*types.TableDescription, error) {
	return r.admin.DescribeTable(ctx)
}

// WaitUntilActive blocks until the session table is ACTIVE.
func (r *Repository) WaitUntilActive(ctx context.Context, maxWait time.Duration) error {
	return r.admin.WaitUntilActive(ctx, maxWait)
}
