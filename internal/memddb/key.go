package memddb

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// keyValue is a comparable key attribute. The zero value sorts before every
// real key.
type keyValue struct {
	kind byte // 0, 'B', 'N' or 'S'
	s    string
	n    float64
}

func keyOf(v types.AttributeValue) (keyValue, bool) {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return keyValue{kind: 'S', s: v.Value}, true
	case *types.AttributeValueMemberB:
		return keyValue{kind: 'B', s: string(v.Value)}, true
	case *types.AttributeValueMemberN:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return keyValue{}, false
		}
		return keyValue{kind: 'N', s: v.Value, n: f}, true
	default:
		return keyValue{}, false
	}
}

func (k keyValue) compare(o keyValue) int {
	if k.kind != o.kind {
		return cmp.Compare(k.kind, o.kind)
	}
	if k.kind == 'N' {
		return cmp.Compare(k.n, o.n)
	}
	return strings.Compare(k.s, o.s)
}

// tuple is a sort position: index range key (if any), then table hash and
// range keys.
type tuple []keyValue

func (t tuple) compare(o tuple) int {
	for i := range t {
		if i >= len(o) {
			return 1
		}
		if c := t[i].compare(o[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(t), len(o))
}

// keySchema names the hash and optional range attribute of a table or index.
type keySchema struct {
	hash string
	rng  string
}

func newKeySchema(elems []types.KeySchemaElement) keySchema {
	var ks keySchema
	for _, e := range elems {
		if e.AttributeName == nil {
			continue
		}
		switch e.KeyType {
		case types.KeyTypeHash:
			ks.hash = *e.AttributeName
		case types.KeyTypeRange:
			ks.rng = *e.AttributeName
		}
	}
	return ks
}

func (ks keySchema) elements() []types.KeySchemaElement {
	elems := []types.KeySchemaElement{{AttributeName: aws.String(ks.hash), KeyType: types.KeyTypeHash}}
	if ks.rng != "" {
		elems = append(elems, types.KeySchemaElement{AttributeName: aws.String(ks.rng), KeyType: types.KeyTypeRange})
	}
	return elems
}

// extract returns the key values of item under ks. ok is false when a key
// attribute is absent or not a scalar.
func (ks keySchema) extract(item map[string]types.AttributeValue) (hash, rng keyValue, ok bool) {
	hash, ok = keyOf(item[ks.hash])
	if !ok {
		return keyValue{}, keyValue{}, false
	}
	if ks.rng == "" {
		return hash, keyValue{}, true
	}
	rng, ok = keyOf(item[ks.rng])
	if !ok {
		return keyValue{}, keyValue{}, false
	}
	return hash, rng, true
}

// project copies the attributes of ks from item into dst.
func (ks keySchema) project(dst, item map[string]types.AttributeValue) {
	dst[ks.hash] = cloneValue(item[ks.hash])
	if ks.rng != "" {
		dst[ks.rng] = cloneValue(item[ks.rng])
	}
}

func (ks keySchema) isKey(attr string) bool {
	return attr == ks.hash || (ks.rng != "" && attr == ks.rng)
}
