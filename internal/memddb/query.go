package memddb

import (
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// match is a candidate result with its position in read order.
type match struct {
	pos  tuple
	item map[string]types.AttributeValue
}

// Query reads one partition of the table or of a secondary index.
//
// LastEvaluatedKey is set only when Limit cut the result short.
func (db *DB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("Query"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.FilterExpression != nil {
		return nil, validationError("FilterExpression is not supported")
	}

	var idx *index
	keys := t.keys
	if params.IndexName != nil {
		if idx, err = t.index(*params.IndexName); err != nil {
			return nil, err
		}
		keys = idx.keys
		if params.ConsistentRead != nil && *params.ConsistentRead {
			return nil, validationError("Consistent reads are not supported on global secondary indexes")
		}
	}

	c := exprContext{names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	kc, err := parseKeyCondition(params.KeyConditionExpression, c, keys)
	if err != nil {
		return nil, err
	}

	var matches []match
	if idx == nil {
		t.items.AscendGreaterOrEqual(&record{hash: kc.hash}, func(r *record) bool {
			if r.hash.compare(kc.hash) != 0 {
				return false
			}
			if kc.matchRange(r.rng) {
				matches = append(matches, match{pos: tuple{r.rng}, item: r.item})
			}
			return true
		})
	} else {
		t.items.Ascend(func(r *record) bool {
			hash, rng, ok := idx.keys.extract(r.item)
			if ok && hash.compare(kc.hash) == 0 && kc.matchRange(rng) {
				matches = append(matches, match{pos: tuple{rng, r.hash, r.rng}, item: r.item})
			}
			return true
		})
		slices.SortFunc(matches, func(a, b match) int { return a.pos.compare(b.pos) })
	}

	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	if !forward {
		slices.Reverse(matches)
	}

	if params.ExclusiveStartKey != nil {
		start, err := db.startPosition(t, idx, params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		matches = slices.DeleteFunc(matches, func(m match) bool {
			c := m.pos.compare(start)
			return (forward && c <= 0) || (!forward && c >= 0)
		})
	}

	page, more, err := limit(matches, params.Limit)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.QueryOutput{
		Count:        int32(len(page)),
		ScannedCount: int32(len(page)),
	}
	for _, m := range page {
		out.Items = append(out.Items, t.project(idx, m.item))
	}
	if more {
		out.LastEvaluatedKey = t.evaluatedKey(idx, page[len(page)-1].item)
	}
	return out, nil
}

// Scan reads the whole table in primary key order.
func (db *DB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.enter("Scan"); err != nil {
		return nil, err
	}

	t, err := db.lookup(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.FilterExpression != nil || params.IndexName != nil {
		return nil, validationError("FilterExpression and IndexName are not supported on Scan")
	}

	var start tuple
	if params.ExclusiveStartKey != nil {
		hash, rng, ok := t.keys.extract(params.ExclusiveStartKey)
		if !ok {
			return nil, validationError("The provided starting key is invalid")
		}
		start = tuple{hash, rng}
	}

	var matches []match
	t.items.Ascend(func(r *record) bool {
		pos := tuple{r.hash, r.rng}
		if start == nil || pos.compare(start) > 0 {
			matches = append(matches, match{pos: pos, item: r.item})
		}
		return true
	})

	page, more, err := limit(matches, params.Limit)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.ScanOutput{
		Count:        int32(len(page)),
		ScannedCount: int32(len(page)),
	}
	for _, m := range page {
		out.Items = append(out.Items, cloneItem(m.item))
	}
	if more {
		out.LastEvaluatedKey = t.evaluatedKey(nil, page[len(page)-1].item)
	}
	return out, nil
}

func limit(matches []match, n *int32) ([]match, bool, error) {
	if n != nil && *n < 1 {
		return nil, false, validationError("Limit must be greater than or equal to 1, got %d", *n)
	}
	if n == nil || int(*n) >= len(matches) {
		return matches, false, nil
	}
	return matches[:*n], true, nil
}

// startPosition converts an ExclusiveStartKey into a read position. The key
// need not name an item that still exists.
func (db *DB) startPosition(t *table, idx *index, esk map[string]types.AttributeValue) (tuple, error) {
	hash, rng, ok := t.keys.extract(esk)
	if !ok {
		return nil, validationError("The provided starting key is invalid")
	}
	if idx == nil {
		return tuple{rng}, nil
	}
	_, idxRng, ok := idx.keys.extract(esk)
	if !ok {
		return nil, validationError("The provided starting key is invalid")
	}
	return tuple{idxRng, hash, rng}, nil
}

func (t *table) evaluatedKey(idx *index, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := make(map[string]types.AttributeValue)
	t.keys.project(key, item)
	if idx != nil {
		idx.keys.project(key, item)
	}
	return key
}

// project applies the index projection to item.
func (t *table) project(idx *index, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if idx == nil || idx.projection.ProjectionType == "" || idx.projection.ProjectionType == types.ProjectionTypeAll {
		return cloneItem(item)
	}

	out := t.evaluatedKey(idx, item)
	if idx.projection.ProjectionType == types.ProjectionTypeInclude {
		for _, attr := range idx.projection.NonKeyAttributes {
			if v, ok := item[attr]; ok {
				out[attr] = cloneValue(v)
			}
		}
	}
	return out
}
