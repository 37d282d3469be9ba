package entity

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/store"
)

// Customer attributes
const (
	AttrUsername     = "Username"
	AttrEmailAddress = "EmailAddress"
	AttrName         = "Name"
	AttrAddresses    = "Addresses"
)

// Customer is the root of a customer partition.
type Customer struct {
	Username string
	Email    string
	Name     string

	// Addresses maps an address name (e.g. "home") to its details.
	// It is always stored as a map, possibly empty, so single entries can be
	// set or removed with a path update.
	Addresses map[string]string
}

// EntityType returns TypeCustomer.
func (c Customer) EntityType() string { return TypeCustomer }

// Key returns the primary key of the customer item.
func (c Customer) Key() store.PK { return CustomerKey(c.Username) }

// Item encodes the customer, including its key and Addresses as an M.
func (c Customer) Item() map[string]types.AttributeValue {
	addresses := make(map[string]types.AttributeValue, len(c.Addresses))
	for name, details := range c.Addresses {
		addresses[name] = s(details)
	}

	item := c.Key()
	item[AttrEntityType] = s(TypeCustomer)
	item[AttrUsername] = s(c.Username)
	item[AttrEmailAddress] = s(c.Email)
	item[AttrName] = s(c.Name)
	item[AttrAddresses] = &types.AttributeValueMemberM{Value: addresses}
	return item
}

// DecodeCustomer decodes a customer item.
func DecodeCustomer(item map[string]types.AttributeValue) (Customer, error) {
	var c Customer
	var err error

	if c.Username, err = store.GetString(item, AttrUsername); err != nil {
		return Customer{}, err
	}
	if c.Email, err = store.GetString(item, AttrEmailAddress); err != nil {
		return Customer{}, err
	}
	if c.Name, err = store.GetString(item, AttrName); err != nil {
		return Customer{}, err
	}

	raw, err := store.GetMap(item, AttrAddresses)
	if err != nil {
		return Customer{}, err
	}
	c.Addresses = make(map[string]string, len(raw))
	for name, v := range raw {
		var details string
		if err := attributevalue.Unmarshal(v, &details); err != nil {
			return Customer{}, &store.MalformedRecordError{
				Attribute: AttrAddresses + "." + name,
				Reason:    err.Error(),
			}
		}
		c.Addresses[name] = details
	}
	return c, nil
}

// EmailAddressReservation exists only to make an email address unique
// across customers. It is written in the same transaction as its customer.
type EmailAddressReservation struct {
	Email string
}

// EntityType returns TypeEmailAddress.
func (e EmailAddressReservation) EntityType() string { return TypeEmailAddress }

// Key returns the primary key of the reservation item.
func (e EmailAddressReservation) Key() store.PK { return EmailKey(e.Email) }

// Item encodes the reservation. It carries only its key and entity type.
func (e EmailAddressReservation) Item() map[string]types.AttributeValue {
	item := e.Key()
	item[AttrEntityType] = s(TypeEmailAddress)
	return item
}

// DecodeEmailAddressReservation decodes a reservation item. The email is
// recovered from the partition key.
func DecodeEmailAddressReservation(item map[string]types.AttributeValue) (EmailAddressReservation, error) {
	pk, err := store.GetString(item, AttrPK)
	if err != nil {
		return EmailAddressReservation{}, err
	}
	email, ok := strings.CutPrefix(pk, PrefixCustomerEmail)
	if !ok {
		return EmailAddressReservation{}, &store.MalformedRecordError{Attribute: AttrPK, Reason: "want prefix " + PrefixCustomerEmail}
	}
	return EmailAddressReservation{Email: email}, nil
}
