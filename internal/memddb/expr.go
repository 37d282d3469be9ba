package memddb

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// exprContext resolves placeholders of one request.
type exprContext struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func (c exprContext) name(tok string) (string, error) {
	if !strings.HasPrefix(tok, "#") {
		return tok, nil
	}
	n, ok := c.names[tok]
	if !ok {
		return "", validationError("An expression attribute name used in the document path is not defined; attribute name: %s", tok)
	}
	return n, nil
}

func (c exprContext) value(tok string) (types.AttributeValue, error) {
	if !strings.HasPrefix(tok, ":") {
		return nil, validationError("unsupported operand %q: only value placeholders are understood", tok)
	}
	v, ok := c.values[tok]
	if !ok {
		return nil, validationError("An expression attribute value used in expression is not defined; attribute value: %s", tok)
	}
	return v, nil
}

// path resolves a dotted document path such as "#addresses.#name".
func (c exprContext) path(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, validationError("empty document path")
	}
	if strings.ContainsAny(expr, "[]") {
		return nil, validationError("list index paths are not supported: %s", expr)
	}
	parts := strings.Split(expr, ".")
	out := make([]string, len(parts))
	for i, p := range parts {
		n, err := c.name(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func lookupPath(item map[string]types.AttributeValue, path []string) (types.AttributeValue, bool) {
	m := item
	for i, p := range path {
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		child, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		m = child.Value
	}
	return nil, false
}

// --- Conditions ---

var (
	andRe  = regexp.MustCompile(`(?i)\s+AND\s+`)
	funcRe = regexp.MustCompile(`^(attribute_exists|attribute_not_exists)\s*\(\s*([^()]+?)\s*\)$`)
)

// evalCondition evaluates a conjunction of attribute_exists and
// attribute_not_exists checks against item, which may be nil.
func evalCondition(expr *string, c exprContext, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, term := range andRe.Split(strings.TrimSpace(*expr), -1) {
		m := funcRe.FindStringSubmatch(strings.TrimSpace(term))
		if m == nil {
			return false, validationError("unsupported condition expression: %s", *expr)
		}
		path, err := c.path(m[2])
		if err != nil {
			return false, err
		}
		_, exists := lookupPath(item, path)
		if exists != (m[1] == "attribute_exists") {
			return false, nil
		}
	}
	return true, nil
}

// --- Updates ---

var clauseRe = regexp.MustCompile(`(?i)(?:^|\s)(SET|REMOVE)\s`)

type setAction struct {
	path  []string
	value types.AttributeValue
}

type updatePlan struct {
	sets    []setAction
	removes [][]string
}

func parseUpdate(expr string, c exprContext) (updatePlan, error) {
	var plan updatePlan
	expr = strings.TrimSpace(expr)
	locs := clauseRe.FindAllStringSubmatchIndex(expr, -1)
	if len(locs) == 0 {
		return plan, validationError("unsupported update expression: %s", expr)
	}
	if strings.TrimSpace(expr[:locs[0][2]]) != "" {
		return plan, validationError("unsupported update expression: %s", expr)
	}

	for i, loc := range locs {
		keyword := strings.ToUpper(expr[loc[2]:loc[3]])
		end := len(expr)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := expr[loc[3]:end]

		for _, action := range strings.Split(body, ",") {
			action = strings.TrimSpace(action)
			if action == "" {
				return plan, validationError("empty action in update expression: %s", expr)
			}
			switch keyword {
			case "SET":
				lhs, rhs, ok := strings.Cut(action, "=")
				if !ok {
					return plan, validationError("invalid SET action: %s", action)
				}
				path, err := c.path(lhs)
				if err != nil {
					return plan, err
				}
				v, err := c.value(strings.TrimSpace(rhs))
				if err != nil {
					return plan, err
				}
				plan.sets = append(plan.sets, setAction{path: path, value: v})
			case "REMOVE":
				path, err := c.path(action)
				if err != nil {
					return plan, err
				}
				plan.removes = append(plan.removes, path)
			}
		}
	}
	return plan, nil
}

// apply mutates item in place. Setting a nested path requires every parent
// to exist as a map; removing a missing path is a no-op.
func (p updatePlan) apply(item map[string]types.AttributeValue, keys keySchema) error {
	for _, s := range p.sets {
		if keys.isKey(s.path[0]) {
			return validationError("Cannot update attribute %s. This attribute is part of the key", s.path[0])
		}
		parent, err := parentMap(item, s.path)
		if err != nil {
			return err
		}
		parent[s.path[len(s.path)-1]] = cloneValue(s.value)
	}
	for _, r := range p.removes {
		if keys.isKey(r[0]) {
			return validationError("Cannot update attribute %s. This attribute is part of the key", r[0])
		}
		parent, err := parentMap(item, r)
		if err != nil {
			continue
		}
		delete(parent, r[len(r)-1])
	}
	return nil
}

func parentMap(item map[string]types.AttributeValue, path []string) (map[string]types.AttributeValue, error) {
	m := item
	for _, p := range path[:len(path)-1] {
		child, ok := m[p].(*types.AttributeValueMemberM)
		if !ok {
			return nil, validationError("The document path provided in the update expression is invalid for update")
		}
		m = child.Value
	}
	return m, nil
}

// --- Key conditions ---

var beginsRe = regexp.MustCompile(`^begins_with\s*\(\s*([^,\s]+)\s*,\s*([^)\s]+)\s*\)$`)

type keyCondition struct {
	hash      keyValue
	rngEquals *keyValue
	rngPrefix *string
}

func parseKeyCondition(expr *string, c exprContext, keys keySchema) (keyCondition, error) {
	var kc keyCondition
	if expr == nil {
		return kc, validationError("KeyConditionExpression is required")
	}

	var sawHash bool
	for _, term := range andRe.Split(strings.TrimSpace(*expr), -1) {
		term = strings.TrimSpace(term)

		if m := beginsRe.FindStringSubmatch(term); m != nil {
			attr, err := c.name(m[1])
			if err != nil {
				return kc, err
			}
			v, err := c.value(m[2])
			if err != nil {
				return kc, err
			}
			s, ok := v.(*types.AttributeValueMemberS)
			if attr != keys.rng || !ok {
				return kc, validationError("begins_with is only supported on a string range key")
			}
			kc.rngPrefix = &s.Value
			continue
		}

		lhs, rhs, ok := strings.Cut(term, "=")
		if !ok {
			return kc, validationError("unsupported key condition: %s", term)
		}
		attr, err := c.name(strings.TrimSpace(lhs))
		if err != nil {
			return kc, err
		}
		v, err := c.value(strings.TrimSpace(rhs))
		if err != nil {
			return kc, err
		}
		kv, ok := keyOf(v)
		if !ok {
			return kc, validationError("key condition value for %s must be a scalar", attr)
		}
		switch attr {
		case keys.hash:
			kc.hash = kv
			sawHash = true
		case keys.rng:
			kc.rngEquals = &kv
		default:
			return kc, validationError("Query condition missed key schema element: %s", attr)
		}
	}
	if !sawHash {
		return kc, validationError("Query condition missed key schema element: %s", keys.hash)
	}
	return kc, nil
}

func (kc keyCondition) matchRange(rng keyValue) bool {
	if kc.rngEquals != nil && rng.compare(*kc.rngEquals) != 0 {
		return false
	}
	if kc.rngPrefix != nil && (rng.kind != 'S' || !strings.HasPrefix(rng.s, *kc.rngPrefix)) {
		return false
	}
	return true
}
