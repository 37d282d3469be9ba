package store

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSchema describes the physical layout of a table, independent of its name.
type TableSchema struct {
	AttributeDefinitions   []types.AttributeDefinition
	KeySchema              []types.KeySchemaElement
	GlobalSecondaryIndexes []types.GlobalSecondaryIndex

	// BillingMode defaults to PAY_PER_REQUEST.
	BillingMode types.BillingMode

	// TTLAttribute, when set, is the numeric attribute the store may use to
	// expire items. Enabling it is advisory: sweeps can lag by hours and are
	// a no-op in DynamoDB Local.
	TTLAttribute string
}

// createTableInput builds the CreateTable request for a table called name.
func (s TableSchema) createTableInput(name string) *dynamodb.CreateTableInput {
	billing := s.BillingMode
	if billing == "" {
		billing = types.BillingModePayPerRequest
	}
	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		AttributeDefinitions: s.AttributeDefinitions,
		KeySchema:            s.KeySchema,
		BillingMode:          billing,
	}
	if len(s.GlobalSecondaryIndexes) > 0 {
		input.GlobalSecondaryIndexes = s.GlobalSecondaryIndexes
	}
	return input
}

// Admin creates, describes and deletes a single table.
type Admin struct {
	client Client
	config Config
}

// NewAdmin creates a table administrator for config.TableName.
func NewAdmin(client Client, config Config) *Admin {
	config.validate()
	return &Admin{
		client: client,
		config: config,
	}
}

// CreateTable creates the table from schema. If the table already exists it
// logs and returns nil, so setup can be re-run safely.
//
// Table creation is asynchronous: the table reports CREATING until it becomes
// ACTIVE. Use WaitUntilActive before relying on it.
func (a *Admin) CreateTable(ctx context.Context, schema TableSchema) error {
	logger := a.config.Logger.With("table", a.config.TableName)

	_, err := a.client.CreateTable(ctx, schema.createTableInput(a.config.TableName))
	if err = MapError("create table", err); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			logger.Info("table already exists, not running setup")
			return nil
		}
		return err
	}
	logger.Info("table created")

	if schema.TTLAttribute == "" {
		return nil
	}

	_, err = a.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(a.config.TableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(schema.TTLAttribute),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		// Expiry is enforced at read time; the store-side sweep is only cleanup.
		logger.Warn("failed to enable time to live",
			"attribute", schema.TTLAttribute,
			"error", err,
		)
		return nil
	}
	logger.Info("time to live enabled", "attribute", schema.TTLAttribute)
	return nil
}

// DeleteTable deletes the table. It returns ErrTableNotFound if it does not exist.
func (a *Admin) DeleteTable(ctx context.Context) (*types.TableDescription, error) {
	out, err := a.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(a.config.TableName),
	})
	if err != nil {
		return nil, MapError("delete table", err)
	}
	a.config.Logger.Info("table deleted", "table", a.config.TableName)
	return out.TableDescription, nil
}

// DescribeTable returns the table metadata. The view is eventually
// consistent; right after CreateTable the status may still be CREATING.
func (a *Admin) DescribeTable(ctx context.Context) (*types.TableDescription, error) {
	out, err := a.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(a.config.TableName),
	})
	if err != nil {
		return nil, MapError("describe table", err)
	}
	return out.Table, nil
}

// WaitUntilActive blocks until the table reports ACTIVE or maxWait elapses.
func (a *Admin) WaitUntilActive(ctx context.Context, maxWait time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(a.client)
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(a.config.TableName),
	}, maxWait)
	return MapError("wait for table", err)
}
