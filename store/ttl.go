package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsExpired reports whether the numeric TTL attribute attr of item is before now.
// Items without the attribute, or with a non-numeric value, are not expired.
func IsExpired(item map[string]types.AttributeValue, attr string, now time.Time) bool {
	ttlAttr, exists := item[attr]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseFloat(ttlNum.Value, 64)
	if err != nil {
		return false
	}
	return ttl < float64(now.Unix())
}

// EpochSeconds returns t as a numeric attribute in unix seconds, the format
// DynamoDB TTL sweeps read.
func EpochSeconds(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}
