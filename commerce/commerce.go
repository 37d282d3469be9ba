// Package commerce stores customers, their orders and order items in a single
// DynamoDB table.
//
// A customer and its orders share a partition, so one query returns a
// customer with its most recent orders. Order items have partitions of their
// own and are gathered with their order summary through the GSI_ORDERS index.
package commerce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/entity"
	"github.com/jacentio/singletable/internal/sortid"
	"github.com/jacentio/singletable/store"
)

// ErrPartialOrder is returned by CreateOrder when the order summary was
// written but not all of its items were.
var ErrPartialOrder = errors.New("singletable: order partially written")

// Schema returns the e-commerce table layout: PK/SK primary key and the
// GSI_ORDERS index on GSI1PK/GSI1SK projecting all attributes.
func Schema() store.TableSchema {
	return store.TableSchema{
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(entity.AttrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(entity.AttrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(entity.AttrGSI1PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(entity.AttrGSI1SK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(entity.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(entity.AttrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(entity.OrdersIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(entity.AttrGSI1PK), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(entity.AttrGSI1SK), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	}
}

// Repository reads and writes the e-commerce table.
type Repository struct {
	client store.Client
	config store.Config
	admin  *store.Admin

	newID func() (sortid.ID, error)
}

// New creates an e-commerce repository for config.TableName.
func New(client store.Client, config store.Config) *Repository {
	config = config.Validated()
	return &Repository{
		client: client,
		config: config,
		admin:  store.NewAdmin(client, config),
		newID:  sortid.New,
	}
}

type createCustomerInput struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
}

// CreateCustomer creates a customer and reserves its email address in one
// transaction. If either the username or the email is taken nothing is
// written and store.ErrConflict is returned naming the one that collided.
func (r *Repository) CreateCustomer(ctx context.Context, username, email, name string) error {
	if err := store.Validate(createCustomerInput{Username: username, Email: email}); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}

	customer := entity.Customer{Username: username, Email: email, Name: name}
	reservation := entity.EmailAddressReservation{Email: email}

	const (
		customerIndex = 0
		emailIndex    = 1
	)
	notExists := aws.String("attribute_not_exists(#pk)")
	names := map[string]string{"#pk": entity.AttrPK}

	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			customerIndex: {
				Put: &types.Put{
					TableName:                aws.String(r.config.TableName),
					Item:                     customer.Item(),
					ConditionExpression:      notExists,
					ExpressionAttributeNames: names,
				},
			},
			emailIndex: {
				Put: &types.Put{
					TableName:                aws.String(r.config.TableName),
					Item:                     reservation.Item(),
					ConditionExpression:      notExists,
					ExpressionAttributeNames: names,
				},
			},
		},
	})
	if err == nil {
		return nil
	}

	switch store.CancellationIndex(err) {
	case customerIndex:
		return fmt.Errorf("create customer: %w: username %q already exists", store.ErrConflict, username)
	case emailIndex:
		return fmt.Errorf("create customer: %w: email %q already in use", store.ErrConflict, email)
	default:
		return store.MapError("create customer", err)
	}
}

// AddCustomerAddress sets the named address of a customer, replacing any
// address already stored under that name.
func (r *Repository) AddCustomerAddress(ctx context.Context, username, addressName, details string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.config.TableName),
		Key:                 entity.CustomerKey(username),
		UpdateExpression:    aws.String("SET #addresses.#name = :address"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk":        entity.AttrPK,
			"#addresses": entity.AttrAddresses,
			"#name":      addressName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":address": &types.AttributeValueMemberS{Value: details},
		},
	})
	return customerUpdateError("add customer address", username, err)
}

// DeleteCustomerAddress removes the named address of a customer. Removing an
// address that is not stored is a no-op.
func (r *Repository) DeleteCustomerAddress(ctx context.Context, username, addressName string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.config.TableName),
		Key:                 entity.CustomerKey(username),
		UpdateExpression:    aws.String("REMOVE #addresses.#name"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk":        entity.AttrPK,
			"#addresses": entity.AttrAddresses,
			"#name":      addressName,
		},
	})
	return customerUpdateError("delete customer address", username, err)
}

func customerUpdateError(op, username string, err error) error {
	err = store.MapError(op, err)
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("%s: customer %q not found: %w", op, username, err)
	}
	return err
}

// ItemInput is one line of a new order.
type ItemInput struct {
	Price       float64 `validate:"gte=0"`
	Description string  `validate:"required"`
}

type createOrderInput struct {
	Username string      `validate:"required"`
	Items    []ItemInput `validate:"min=1,dive"`
}

// CreateOrder writes an ACCEPTED order for username, followed by one record
// per item. The amount and item count are fixed at creation; the amount is
// the sum of item prices rounded to cents.
//
// The customer is not checked for existence, and the writes are not
// transactional: if an item write fails the order is returned along with an
// error wrapping ErrPartialOrder, so the caller knows which order is
// incomplete.
func (r *Repository) CreateOrder(ctx context.Context, username string, items []ItemInput) (*entity.Order, error) {
	if err := store.Validate(createOrderInput{Username: username, Items: items}); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	orderID, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	order := &entity.Order{
		Username:    username,
		ID:          orderID.String(),
		CreatedAt:   orderID.Time(),
		Status:      entity.StatusAccepted,
		Amount:      orderAmount(items),
		NumberItems: len(items),
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.config.TableName),
		Item:      order.Item(),
	})
	if err != nil {
		return nil, store.MapError("create order", err)
	}

	for i, item := range items {
		if err := r.putOrderItem(ctx, order.ID, item); err != nil {
			r.config.Logger.Warn("order partially written",
				"table", r.config.TableName,
				"order", order.ID,
				"written", i,
				"items", len(items),
				"error", err,
			)
			return order, fmt.Errorf("create order %s: %w: %d of %d items written: %w",
				order.ID, ErrPartialOrder, i, len(items), err)
		}
	}
	return order, nil
}

func (r *Repository) putOrderItem(ctx context.Context, orderID string, in ItemInput) error {
	itemID, err := r.newID()
	if err != nil {
		return err
	}
	item := entity.OrderItem{
		OrderID:     orderID,
		ItemID:      itemID.String(),
		Price:       in.Price,
		Description: in.Description,
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.config.TableName),
		Item:      item.Item(),
	})
	return store.MapError("put order item", err)
}

// UpdateOrderStatus sets the status of an order. status must name one of
// the OrderStatus values.
func (r *Repository) UpdateOrderStatus(ctx context.Context, username, orderID, status string) error {
	parsed, err := entity.ParseOrderStatus(status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.config.TableName),
		Key:              entity.OrderKey(username, orderID),
		UpdateExpression: aws.String("SET #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": entity.AttrStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(parsed)},
		},
	})
	return store.MapError("update order status", err)
}

func orderAmount(items []ItemInput) float64 {
	var amount float64
	for _, item := range items {
		amount += item.Price
	}
	return math.Round(amount*100) / 100
}

// GetCustomerAndOrders reads the customer record and its most recent orders.
// The customer sorts first, then orders newest first. Up to limit+1 entities
// are returned; see Page.HasMore.
func (r *Repository) GetCustomerAndOrders(ctx context.Context, username string, limit int) (*Page, error) {
	return r.query(ctx, "get customer and orders", &dynamodb.QueryInput{
		TableName:              aws.String(r.config.TableName),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": entity.AttrPK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: entity.CustomerPK(username)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            queryLimit(limit),
	})
}

// GetOrderAndOrderItems reads an order summary and its items through the
// orders index. The summary sorts first. Up to limit+1 entities are
// returned; see Page.HasMore.
func (r *Repository) GetOrderAndOrderItems(ctx context.Context, orderID string, limit int) (*Page, error) {
	return r.query(ctx, "get order and order items", &dynamodb.QueryInput{
		TableName:              aws.String(r.config.TableName),
		IndexName:              aws.String(entity.OrdersIndex),
		KeyConditionExpression: aws.String("#gsipk = :gsipk"),
		ExpressionAttributeNames: map[string]string{
			"#gsipk": entity.AttrGSI1PK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gsipk": &types.AttributeValueMemberS{Value: entity.OrderIndexPK(orderID)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            queryLimit(limit),
	})
}

func (r *Repository) query(ctx context.Context, op string, input *dynamodb.QueryInput) (*Page, error) {
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, store.MapError(op, err)
	}
	entities, err := entity.DecodeAll(out.Items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Page{
		Entities:         entities,
		LastEvaluatedKey: out.LastEvaluatedKey,
	}, nil
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

// CreateTable creates the e-commerce table. It is safe to call when the
// table already exists.
func (r *Repository) CreateTable(ctx context.Context) error {
	return r.admin.CreateTable(ctx, Schema())
}

// DeleteTable deletes the e-commerce table.
func (r *Repository) DeleteTable(ctx context.Context) (*types.TableDescription, error) {
	return r.admin.DeleteTable(ctx)
}

// DescribeTable returns the e-commerce table metadata.
func (r *Repository) DescribeTable(ctx context.Context) (*types.TableDescription, error) {
	return r.admin.DescribeTable(ctx)
}

// WaitUntilActive blocks until the e-commerce table is ACTIVE.
func (r *Repository) WaitUntilActive(ctx context.Context, maxWait time.Duration) error {
	return r.admin.WaitUntilActive(ctx, maxWait)
}
