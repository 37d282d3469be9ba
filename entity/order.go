package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/store"
)

// Order and order item attributes
const (
	AttrOrderID         = "OrderId"
	AttrCreatedAt       = "CreatedAt"
	AttrStatus          = "Status"
	AttrAmount          = "Amount"
	AttrNumberItems     = "NumberItems"
	AttrItemID          = "ItemId"
	AttrItemPrice       = "ItemPrice"
	AttrItemDescription = "ItemDescription"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusAccepted  OrderStatus = "ACCEPTED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus returns the status named by s. Matching is exact.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case StatusAccepted, StatusShipped, StatusDelivered, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", store.ErrInvalidInput, s)
	}
}

// Order is an order summary. It lives in its customer's partition and is
// also indexed by order id so it can be read together with its items.
type Order struct {
	Username    string
	ID          string
	CreatedAt   time.Time
	Status      OrderStatus
	Amount      float64
	NumberItems int
}

// EntityType returns TypeOrder.
func (o Order) EntityType() string { return TypeOrder }

// Key returns the primary key of the order summary.
func (o Order) Key() store.PK { return OrderKey(o.Username, o.ID) }

// Item encodes the order summary with its orders index key.
func (o Order) Item() map[string]types.AttributeValue {
	item := o.Key()
	item[AttrGSI1PK] = s(OrderIndexPK(o.ID))
	item[AttrGSI1SK] = s(OrderIndexSK(o.ID))
	item[AttrEntityType] = s(TypeOrder)
	item[AttrOrderID] = s(o.ID)
	item[AttrCreatedAt] = s(store.FormatTime(o.CreatedAt))
	item[AttrStatus] = s(string(o.Status))
	item[AttrAmount] = n(strconv.FormatFloat(o.Amount, 'f', -1, 64))
	item[AttrNumberItems] = n(strconv.Itoa(o.NumberItems))
	return item
}

// DecodeOrder decodes an order item. The username is recovered from the
// partition key.
func DecodeOrder(item map[string]types.AttributeValue) (Order, error) {
	var o Order

	pk, err := store.GetString(item, AttrPK)
	if err != nil {
		return Order{}, err
	}
	username, ok := strings.CutPrefix(pk, PrefixCustomer)
	if !ok {
		return Order{}, &store.MalformedRecordError{Attribute: AttrPK, Reason: "want prefix " + PrefixCustomer}
	}
	o.Username = username

	if o.ID, err = store.GetString(item, AttrOrderID); err != nil {
		return Order{}, err
	}
	if o.CreatedAt, err = store.GetTime(item, AttrCreatedAt); err != nil {
		return Order{}, err
	}

	status, err := store.GetString(item, AttrStatus)
	if err != nil {
		return Order{}, err
	}
	o.Status = OrderStatus(status)

	if o.Amount, err = store.GetFloat(item, AttrAmount); err != nil {
		return Order{}, err
	}
	count, err := store.GetInt(item, AttrNumberItems)
	if err != nil {
		return Order{}, err
	}
	o.NumberItems = int(count)

	return o, nil
}

// OrderItem is one line of an order. It has its own partition and is only
// reachable through the orders index.
type OrderItem struct {
	OrderID     string
	ItemID      string
	Price       float64
	Description string
}

// EntityType returns TypeItem.
func (i OrderItem) EntityType() string { return TypeItem }

// Key returns the primary key of the order item.
func (i OrderItem) Key() store.PK { return OrderItemKey(i.ItemID) }

// Item encodes the order item with its orders index key.
func (i OrderItem) Item() map[string]types.AttributeValue {
	item := i.Key()
	item[AttrGSI1PK] = s(OrderIndexPK(i.OrderID))
	item[AttrGSI1SK] = s(OrderItemIndexSK(i.ItemID))
	item[AttrEntityType] = s(TypeItem)
	item[AttrOrderID] = s(i.OrderID)
	item[AttrItemID] = s(i.ItemID)
	item[AttrItemPrice] = n(strconv.FormatFloat(i.Price, 'f', -1, 64))
	item[AttrItemDescription] = s(i.Description)
	return item
}

// DecodeOrderItem decodes an order item record.
func DecodeOrderItem(item map[string]types.AttributeValue) (OrderItem, error) {
	var i OrderItem
	var err error

	if i.OrderID, err = store.GetString(item, AttrOrderID); err != nil {
		return OrderItem{}, err
	}
	if i.ItemID, err = store.GetString(item, AttrItemID); err != nil {
		return OrderItem{}, err
	}
	if i.Price, err = store.GetFloat(item, AttrItemPrice); err != nil {
		return OrderItem{}, err
	}
	if i.Description, err = store.GetString(item, AttrItemDescription); err != nil {
		return OrderItem{}, err
	}
	return i, nil
}
