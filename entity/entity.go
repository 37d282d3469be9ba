// Package entity maps the logical entities of the session and e-commerce
// tables onto DynamoDB items.
//
// Each variant owns its key construction and its encoding; [Decode] maps a
// raw item back to the variant it came from.
package entity

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/store"
)

// Entity is implemented by every item type stored in either table.
type Entity interface {
	// EntityType returns the type tag (e.g. "CUSTOMER").
	EntityType() string

	// Key returns the primary key of the item.
	Key() store.PK

	// Item returns the full item, keys included.
	Item() map[string]types.AttributeValue
}

// Entity type tags stored in the EntityType attribute.
const (
	TypeCustomer     = "CUSTOMER"
	TypeEmailAddress = "EMAIL_ADDRESS"
	TypeOrder        = "ORDER"
	TypeItem         = "ITEM"

	// TypeSession is not stored; session items are recognised by their key.
	TypeSession = "SESSION"
)

var (
	_ Entity = Customer{}
	_ Entity = EmailAddressReservation{}
	_ Entity = Order{}
	_ Entity = OrderItem{}
	_ Entity = SessionToken{}
)

// Decode returns the entity encoded in item.
func Decode(item map[string]types.AttributeValue) (Entity, error) {
	if _, ok := item[AttrEntityType]; !ok {
		if _, ok := item[AttrSessionToken]; ok {
			return DecodeSessionToken(item)
		}
	}

	entityType, err := store.GetString(item, AttrEntityType)
	if err != nil {
		return nil, err
	}

	switch entityType {
	case TypeCustomer:
		return DecodeCustomer(item)
	case TypeEmailAddress:
		return DecodeEmailAddressReservation(item)
	case TypeOrder:
		return DecodeOrder(item)
	case TypeItem:
		return DecodeOrderItem(item)
	default:
		return nil, &store.MalformedRecordError{Attribute: AttrEntityType, Reason: "unknown type " + entityType}
	}
}

// DecodeAll decodes items in order, failing on the first malformed one.
func DecodeAll(items []map[string]types.AttributeValue) ([]Entity, error) {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		e, err := Decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func s(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func n(v string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: v}
}
