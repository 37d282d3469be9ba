package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// kindOf returns the DynamoDB type descriptor of v ("S", "N", "M", ...).
func kindOf(v types.AttributeValue) string {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	default:
		return "unknown"
	}
}

func missing(name string) error {
	return &MalformedRecordError{Attribute: name, Reason: "missing"}
}

func mistyped(name, want string, got types.AttributeValue) error {
	return &MalformedRecordError{Attribute: name, Reason: fmt.Sprintf("want %s, got %s", want, kindOf(got))}
}

// GetString extracts a required string attribute.
func GetString(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name]
	if !ok {
		return "", missing(name)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", mistyped(name, "S", v)
	}
	return s.Value, nil
}

// GetFloat extracts a required numeric attribute as a float64.
func GetFloat(item map[string]types.AttributeValue, name string) (float64, error) {
	v, ok := item[name]
	if !ok {
		return 0, missing(name)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, mistyped(name, "N", v)
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, &MalformedRecordError{Attribute: name, Reason: fmt.Sprintf("bad number %q", n.Value)}
	}
	return f, nil
}

// GetInt extracts a required integral numeric attribute.
func GetInt(item map[string]types.AttributeValue, name string) (int64, error) {
	v, ok := item[name]
	if !ok {
		return 0, missing(name)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, mistyped(name, "N", v)
	}
	i, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, &MalformedRecordError{Attribute: name, Reason: fmt.Sprintf("bad integer %q", n.Value)}
	}
	return i, nil
}

// GetTime extracts a required RFC 3339 timestamp stored as a string.
func GetTime(item map[string]types.AttributeValue, name string) (time.Time, error) {
	s, err := GetString(item, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Attribute: name, Reason: fmt.Sprintf("bad timestamp %q", s)}
	}
	return t, nil
}

// GetMap extracts a required map attribute.
func GetMap(item map[string]types.AttributeValue, name string) (map[string]types.AttributeValue, error) {
	v, ok := item[name]
	if !ok {
		return nil, missing(name)
	}
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return nil, mistyped(name, "M", v)
	}
	return m.Value, nil
}

// FormatTime encodes t the way GetTime decodes it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
