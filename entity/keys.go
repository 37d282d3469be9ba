package entity

import "github.com/jacentio/singletable/store"

// E-commerce table key attributes and index.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "EntityType"

	OrdersIndex = "GSI_ORDERS"
)

// E-commerce key prefixes.
const (
	PrefixCustomer      = "CUSTOMER#"
	PrefixCustomerEmail = "CUSTOMEREMAIL#"
	PrefixOrder         = "ORDER#"
	PrefixOrderSK       = "#ORDER#"
	PrefixOrderItem     = "#ORDER#ITEM#"
	PrefixItem          = "ITEM#"
)

// Session table key attributes and index.
const (
	AttrSessionToken = "SessionToken"
	AttrUserName     = "UserName"

	SessionUserIndex = "GSI1"
)

// CustomerPK returns the partition key of a customer partition.
func CustomerPK(username string) string { return PrefixCustomer + username }

// CustomerSK returns the sort key of the customer item in its partition.
func CustomerSK(username string) string { return PrefixCustomer + username }

// CustomerKey returns the primary key of a customer.
func CustomerKey(username string) store.PK {
	return store.PK{
		AttrPK: s(CustomerPK(username)),
		AttrSK: s(CustomerSK(username)),
	}
}

// EmailPK returns the partition and sort key of an email address
// reservation.
func EmailPK(email string) string { return PrefixCustomerEmail + email }

// EmailKey returns the primary key of an email address reservation.
func EmailKey(email string) store.PK {
	return store.PK{
		AttrPK: s(EmailPK(email)),
		AttrSK: s(EmailPK(email)),
	}
}

// OrderSK returns the sort key of an order. Orders live in their
// customer's partition.
func OrderSK(orderID string) string { return PrefixOrderSK + orderID }

// OrderIndexPK returns the orders index partition shared by an order and
// its items.
func OrderIndexPK(orderID string) string { return PrefixOrder + orderID }

// OrderIndexSK returns the orders index sort key of an order summary.
func OrderIndexSK(orderID string) string { return PrefixOrder + orderID }

// OrderKey returns the primary key of an order.
func OrderKey(username, orderID string) store.PK {
	return store.PK{
		AttrPK: s(CustomerPK(username)),
		AttrSK: s(OrderSK(orderID)),
	}
}

// OrderItemPK returns the partition and sort key of an order item. Items
// are only reachable through the orders index.
func OrderItemPK(itemID string) string { return PrefixOrderItem + itemID }

// OrderItemIndexSK returns the orders index sort key of an order item.
func OrderItemIndexSK(itemID string) string { return PrefixItem + itemID }

// OrderItemKey returns the primary key of an order item.
func OrderItemKey(itemID string) store.PK {
	return store.PK{
		AttrPK: s(OrderItemPK(itemID)),
		AttrSK: s(OrderItemPK(itemID)),
	}
}

// SessionTokenKey returns the primary key of a session token.
func SessionTokenKey(token string) store.PK {
	return store.PK{
		AttrSessionToken: s(token),
	}
}

// OrderIndexKey returns the orders index key of an order summary.
func OrderIndexKey(orderID string) store.PK {
	return store.PK{
		AttrGSI1PK: s(OrderIndexPK(orderID)),
		AttrGSI1SK: s(OrderIndexSK(orderID)),
	}
}
