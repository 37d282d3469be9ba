package memddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// errConditionFailed marks a staged write whose condition did not hold.
var errConditionFailed = errors.New("condition failed")

func conditionalCheckFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

// write is a staged change to one item. A nil item deletes it.
type write struct {
	t    *table
	rec  *record
	item map[string]types.AttributeValue
	old  map[string]types.AttributeValue
}

func (w write) commit() {
	if w.item == nil {
		w.t.items.Delete(w.rec)
		return
	}
	w.t.items.ReplaceOrInsert(&record{hash: w.rec.hash, rng: w.rec.rng, item: w.item})
}

// locate validates key against the table schema and returns the existing item.
func (t *table) locate(key map[string]types.AttributeValue) (*record, map[string]types.AttributeValue, error) {
	hash, rng, ok := t.keys.extract(key)
	if !ok {
		return nil, nil, validationError("The provided key element does not match the schema")
	}
	want := 1
	if t.keys.rng != "" {
		want = 2
	}
	if len(key) != want {
		return nil, nil, validationError("The provided key element does not match the schema")
	}
	pivot := &record{hash: hash, rng: rng}
	if existing, ok := t.items.Get(pivot); ok {
		return pivot, existing.item, nil
	}
	return pivot, nil, nil
}

func (t *table) stagePut(item map[string]types.AttributeValue, cond *string, c exprContext) (write, error) {
	if item == nil {
		return write{}, validationError("Item is required")
	}
	hash, rng, ok := t.keys.extract(item)
	if !ok {
		return write{}, validationError("One or more parameter values were invalid: Missing the key %s in the item", t.keys.hash)
	}
	pivot := &record{hash: hash, rng: rng}
	var old map[string]types.AttributeValue
	if existing, ok := t.items.Get(pivot); ok {
		old = existing.item
	}
	holds, err := evalCondition(cond, c, old)
	if err != nil {
		return write{}, err
	}
	if !holds {
		return write{}, errConditionFailed
	}
	return write{t: t, rec: pivot, item: cloneItem(item), old: old}, nil
}

func (t *table) stageDelete(key map[string]types.AttributeValue, cond *string, c exprContext) (write, error) {
	rec, old, err := t.locate(key)
	if err != nil {
		return write{}, err
	}
	holds, err := evalCondition(cond, c, old)
	if err != nil {
		return write{}, err
	}
	if !holds {
		return write{}, errConditionFailed
	}
	return write{t: t, rec: rec, old: old}, nil
}

// stageUpdate applies update to a copy of the existing item, or to a new
// item holding only the key when none exists.
func (t *table) stageUpdate(key map[string]types.AttributeValue, update, cond *string, c exprContext) (write, error) {
	rec, old, err := t.locate(key)
	if err != nil {
		return write{}, err
	}
	holds, err := evalCondition(cond, c, old)
	if err != nil {
		return write{}, err
	}
	if !holds {
		return write{}, errConditionFailed
	}
	if update == nil {
		return write{}, validationError("UpdateExpression is required")
	}
	plan, err := parseUpdate(*update, c)
	if err != nil {
		return write{}, err
	}

	item := cloneItem(old)
	if item == nil {
		item = cloneItem(key)
	}
	if err := plan.apply(item, t.keys); err != nil {
		return write{}, err
	}
	return write{t: t, rec: rec, item: item, old: old}, nil
}

func (t *table) stageCheck(key map[string]types.AttributeValue, cond *string, c exprContext) (write, error) {
	_, old, err := t.locate(key)
	if err != nil {
		return write{}, err
	}
	if cond == nil {
		return write{}, validationError("ConditionExpression is required")
	}
	holds, err := evalCondition(cond, c, old)
	if err != nil {
		return write{}, err
	}
	if !holds {
		return write{}, errConditionFailed
	}
	return write{}, nil
}

func singleResult(w write, err error) (write, error) {
	if errors.Is(err, errConditionFailed) {
		return write{}, conditionalCheckFailed()
	}
	return w, err
}

func (db *DB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("GetItem"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	_, item, err := t.locate(params.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: cloneItem(item)}, nil
}

func (db *DB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("PutItem"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	c := exprContext{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	w, err := singleResult(t.stagePut(params.Item, params.ConditionExpression, c))
	if err != nil {
		return nil, err
	}
	w.commit()

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = cloneItem(w.old)
	}
	return out, nil
}

func (db *DB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("DeleteItem"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	c := exprContext{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	w, err := singleResult(t.stageDelete(params.Key, params.ConditionExpression, c))
	if err != nil {
		return nil, err
	}
	w.commit()

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = cloneItem(w.old)
	}
	return out, nil
}

func (db *DB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("UpdateItem"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	c := exprContext{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	w, err := singleResult(t.stageUpdate(params.Key, params.UpdateExpression, params.ConditionExpression, c))
	if err != nil {
		return nil, err
	}
	w.commit()

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = cloneItem(w.item)
	case types.ReturnValueAllOld:
		out.Attributes = cloneItem(w.old)
	}
	return out, nil
}

// TransactWriteItems stages every action, then commits all of them or none.
// A failed condition cancels the transaction with one reason per action.
func (db *DB) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	if len(params.TransactItems) == 0 || len(params.TransactItems) > 100 {
		return nil, validationError("TransactItems must have between 1 and 100 items")
	}

	writes := make([]write, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false
	touched := make(map[string]bool, len(params.TransactItems))

	for i, ti := range params.TransactItems {
		w, err := db.stageTransactItem(ti)
		switch {
		case errors.Is(err, errConditionFailed):
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
			cancelled = true
			continue
		case err != nil:
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		if w.t == nil {
			w, _ = db.checkTarget(ti)
		}

		id := fmt.Sprintf("%s/%v/%v", w.t.name, w.rec.hash, w.rec.rng)
		if touched[id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		touched[id] = true
		writes = append(writes, w)
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		if w.rec != nil && (w.item != nil || w.old != nil) {
			w.commit()
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (db *DB) stageTransactItem(ti types.TransactWriteItem) (write, error) {
	switch {
	case ti.Put != nil:
		t, err := db.lookup(ti.Put.TableName)
		if err != nil {
			return write{}, err
		}
		c := exprContext{names: ti.Put.ExpressionAttributeNames, values: ti.Put.ExpressionAttributeValues}
		return t.stagePut(ti.Put.Item, ti.Put.ConditionExpression, c)
	case ti.Delete != nil:
		t, err := db.lookup(ti.Delete.TableName)
		if err != nil {
			return write{}, err
		}
		c := exprContext{names: ti.Delete.ExpressionAttributeNames, values: ti.Delete.ExpressionAttributeValues}
		return t.stageDelete(ti.Delete.Key, ti.Delete.ConditionExpression, c)
	case ti.Update != nil:
		t, err := db.lookup(ti.Update.TableName)
		if err != nil {
			return write{}, err
		}
		c := exprContext{names: ti.Update.ExpressionAttributeNames, values: ti.Update.ExpressionAttributeValues}
		return t.stageUpdate(ti.Update.Key, ti.Update.UpdateExpression, ti.Update.ConditionExpression, c)
	case ti.ConditionCheck != nil:
		t, err := db.lookup(ti.ConditionCheck.TableName)
		if err != nil {
			return write{}, err
		}
		c := exprContext{names: ti.ConditionCheck.ExpressionAttributeNames, values: ti.ConditionCheck.ExpressionAttributeValues}
		return t.stageCheck(ti.ConditionCheck.Key, ti.ConditionCheck.ConditionExpression, c)
	default:
		return write{}, validationError("TransactWriteItem must contain exactly one action")
	}
}

// checkTarget returns a no-op write naming the item a condition check reads,
// so duplicate targets are still detected.
func (db *DB) checkTarget(ti types.TransactWriteItem) (write, error) {
	t, err := db.lookup(ti.ConditionCheck.TableName)
	if err != nil {
		return write{}, err
	}
	rec, _, err := t.locate(ti.ConditionCheck.Key)
	if err != nil {
		return write{}, err
	}
	return write{t: t, rec: rec}, nil
}
