package entity

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/store"
)

// Session token attributes. ExpriresAt keeps the spelling of existing tables.
const (
	AttrExpiresAt = "ExpriresAt"
	AttrTTL       = "TTL"
)

// SessionToken is an opaque login token owned by a user.
type SessionToken struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// EntityType returns TypeSession.
func (t SessionToken) EntityType() string { return TypeSession }

// Key returns the primary key of the session token.
func (t SessionToken) Key() store.PK { return SessionTokenKey(t.Token) }

// Item encodes the token. TTL holds the expiry in epoch seconds.
func (t SessionToken) Item() map[string]types.AttributeValue {
	item := t.Key()
	item[AttrUserName] = s(t.Username)
	item[AttrCreatedAt] = s(store.FormatTime(t.CreatedAt))
	item[AttrExpiresAt] = s(store.FormatTime(t.ExpiresAt))
	item[AttrTTL] = store.EpochSeconds(t.ExpiresAt)
	return item
}

// Expired reports whether the token is no longer valid at now.
// A token expires at the instant ExpiresAt is reached.
func (t SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// DecodeSessionToken decodes a full session token item.
func DecodeSessionToken(item map[string]types.AttributeValue) (SessionToken, error) {
	t, err := DecodeSessionTokenKeys(item)
	if err != nil {
		return SessionToken{}, err
	}
	if t.CreatedAt, err = store.GetTime(item, AttrCreatedAt); err != nil {
		return SessionToken{}, err
	}
	if t.ExpiresAt, err = store.GetTime(item, AttrExpiresAt); err != nil {
		return SessionToken{}, err
	}
	return t, nil
}

// DecodeSessionTokenKeys decodes the keys-only projection of the user index,
// which carries only the token and its owner.
func DecodeSessionTokenKeys(item map[string]types.AttributeValue) (SessionToken, error) {
	var t SessionToken
	var err error

	if t.Token, err = store.GetString(item, AttrSessionToken); err != nil {
		return SessionToken{}, err
	}
	if t.Username, err = store.GetString(item, AttrUserName); err != nil {
		return SessionToken{}, err
	}
	return t, nil
}
