// Package memddb is an in-memory stand-in for DynamoDB that implements
// store.Client.
//
// It understands the subset of the API the repositories use: tables with
// global secondary indexes (sparse, ALL or KEYS_ONLY projections), point
// reads and writes, attribute_exists / attribute_not_exists conditions,
// SET and REMOVE updates on document paths, equality and begins_with key
// conditions, paginated queries and scans, and all-or-nothing
// TransactWriteItems. Anything else is rejected with a ValidationException
// rather than silently ignored.
//
// Every call runs under one lock, so each request is atomic the way a single
// DynamoDB request is.
package memddb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/btree"

	"github.com/jacentio/singletable/store"
)

var _ store.Client = (*DB)(nil)

// DB is an in-memory DynamoDB. The zero value is not usable; call New.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table
	faults []*fault
	calls  map[string]int
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		tables: make(map[string]*table),
		calls:  make(map[string]int),
	}
}

type table struct {
	name      string
	keys      keySchema
	attrDefs  []types.AttributeDefinition
	billing   types.BillingMode
	indexes   []*index
	items     *btree.BTreeG[*record]
	ttl       *types.TimeToLiveSpecification
	createdAt time.Time
}

type index struct {
	name       string
	keys       keySchema
	projection types.Projection
}

// record is one stored item, ordered by table hash then range key.
type record struct {
	hash keyValue
	rng  keyValue
	item map[string]types.AttributeValue
}

func lessRecord(a, b *record) bool {
	if c := a.hash.compare(b.hash); c != 0 {
		return c < 0
	}
	return a.rng.compare(b.rng) < 0
}

func newTable(name string, keys keySchema) *table {
	return &table{
		name:      name,
		keys:      keys,
		items:     btree.NewG(8, lessRecord),
		createdAt: time.Now(),
	}
}

// --- Fault injection ---

type fault struct {
	op        string
	remaining int
	err       error
}

// FailOn makes the nth subsequent call to op (a method name such as
// "PutItem") return err instead of running. Calls are counted from the
// moment FailOn is called, starting at 1.
func (db *DB) FailOn(op string, nth int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults = append(db.faults, &fault{op: op, remaining: nth, err: err})
}

// Calls returns how many times op has been called, failed calls included.
func (db *DB) Calls(op string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls[op]
}

// enter records a call to op and returns an injected fault, if one is due.
// The caller must hold db.mu.
func (db *DB) enter(op string) error {
	db.calls[op]++
	for i, f := range db.faults {
		if f.op != op {
			continue
		}
		f.remaining--
		if f.remaining == 0 {
			db.faults = append(db.faults[:i], db.faults[i+1:]...)
			return f.err
		}
	}
	return nil
}

// --- Errors ---

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

func tableNotFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String("Cannot do operations on a non-existent table: " + name),
	}
}

// lookup returns the named table. The caller must hold db.mu.
func (db *DB) lookup(name *string) (*table, error) {
	if name == nil || *name == "" {
		return nil, validationError("TableName is required")
	}
	t, ok := db.tables[*name]
	if !ok {
		return nil, tableNotFound(*name)
	}
	return t, nil
}

// --- Table administration ---

func (db *DB) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("CreateTable"); err != nil {
		return nil, err
	}

	if params.TableName == nil || *params.TableName == "" {
		return nil, validationError("TableName is required")
	}
	name := *params.TableName
	if _, ok := db.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}

	keys := newKeySchema(params.KeySchema)
	if keys.hash == "" {
		return nil, validationError("KeySchema must contain a HASH key")
	}
	t := newTable(name, keys)
	t.attrDefs = params.AttributeDefinitions
	t.billing = params.BillingMode
	for _, gsi := range params.GlobalSecondaryIndexes {
		if gsi.IndexName == nil {
			return nil, validationError("IndexName is required")
		}
		idx := &index{name: *gsi.IndexName, keys: newKeySchema(gsi.KeySchema)}
		if gsi.Projection != nil {
			idx.projection = *gsi.Projection
		}
		if idx.keys.hash == "" {
			return nil, validationError("index %s: KeySchema must contain a HASH key", idx.name)
		}
		t.indexes = append(t.indexes, idx)
	}
	db.tables[name] = t

	desc := t.describe()
	desc.TableStatus = types.TableStatusCreating
	return &dynamodb.CreateTableOutput{TableDescription: desc}, nil
}

func (db *DB) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("DeleteTable"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	delete(db.tables, t.name)

	desc := t.describe()
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: desc}, nil
}

// DescribeTable reports every existing table as ACTIVE.
func (db *DB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("DescribeTable"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: t.describe()}, nil
}

func (db *DB) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("UpdateTimeToLive"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.TimeToLiveSpecification == nil || params.TimeToLiveSpecification.AttributeName == nil {
		return nil, validationError("TimeToLiveSpecification.AttributeName is required")
	}
	spec := *params.TimeToLiveSpecification
	t.ttl = &spec
	return &dynamodb.UpdateTimeToLiveOutput{TimeToLiveSpecification: &spec}, nil
}

// TimeToLive returns the TTL specification last set on the table, or nil.
func (db *DB) TimeToLive(tableName string) *types.TimeToLiveSpecification {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok || t.ttl == nil {
		return nil
	}
	spec := *t.ttl
	return &spec
}

// Items returns a copy of every item in the table in primary key order.
func (db *DB) Items(tableName string) []map[string]types.AttributeValue {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]map[string]types.AttributeValue, 0, t.items.Len())
	t.items.Ascend(func(r *record) bool {
		out = append(out, cloneItem(r.item))
		return true
	})
	return out
}

func (t *table) describe() *types.TableDescription {
	desc := &types.TableDescription{
		TableName:            aws.String(t.name),
		TableStatus:          types.TableStatusActive,
		KeySchema:            t.keys.elements(),
		AttributeDefinitions: t.attrDefs,
		ItemCount:            aws.Int64(int64(t.items.Len())),
		CreationDateTime:     aws.Time(t.createdAt),
	}
	if t.billing != "" {
		desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: t.billing}
	}
	for _, idx := range t.indexes {
		projection := idx.projection
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:   aws.String(idx.name),
			IndexStatus: types.IndexStatusActive,
			KeySchema:   idx.keys.elements(),
			Projection:  &projection,
		})
	}
	return desc
}

func (t *table) index(name string) (*index, error) {
	for _, idx := range t.indexes {
		if idx.name == name {
			return idx, nil
		}
	}
	return nil, validationError("The table does not have the specified index: %s", name)
}

// --- Item copies ---

func cloneItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v types.AttributeValue) types.AttributeValue {
	switch v := v.(type) {
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: cloneItem(v.Value)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			l[i] = cloneValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), v.Value...)}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), v.Value...)}
	default:
		return v
	}
}
