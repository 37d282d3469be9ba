package commerce

import (
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/entity"
)

// DefaultLimit is used when a non-positive limit is requested.
const DefaultLimit = 10

// MaxLimit is the largest limit a read honours. Larger limits are clamped
// so that limit+1 still fits the int32 Query Limit.
const MaxLimit = math.MaxInt32 - 1

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// queryLimit is the Query Limit for a read of limit entities.
func queryLimit(limit int) *int32 {
	return aws.Int32(int32(normalizeLimit(limit) + 1))
}

// Page is one read of a partition, in store order.
//
// Reads ask for limit+1 items so a caller can tell whether more exist
// without a second round-trip.
type Page struct {
	Entities []entity.Entity

	// LastEvaluatedKey is the store's continuation key, nil when the
	// partition was read to the end.
	LastEvaluatedKey map[string]types.AttributeValue
}

// HasMore reports whether the page holds more than limit entities.
func (p *Page) HasMore(limit int) bool {
	return len(p.Entities) > normalizeLimit(limit)
}

// Customer returns the customer record of the page, if present.
func (p *Page) Customer() (entity.Customer, bool) {
	for _, e := range p.Entities {
		if c, ok := e.(entity.Customer); ok {
			return c, true
		}
	}
	return entity.Customer{}, false
}

// Orders returns the order summaries of the page in page order.
func (p *Page) Orders() []entity.Order {
	var out []entity.Order
	for _, e := range p.Entities {
		if o, ok := e.(entity.Order); ok {
			out = append(out, o)
		}
	}
	return out
}

// Items returns the order items of the page in page order.
func (p *Page) Items() []entity.OrderItem {
	var out []entity.OrderItem
	for _, e := range p.Entities {
		if i, ok := e.(entity.OrderItem); ok {
			out = append(out, i)
		}
	}
	return out
}
