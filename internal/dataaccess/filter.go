package dataaccess

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/fieldtype"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// selectRecords applies filter, search, sort and paging, returning a new slice.
func (m *Memory) selectRecords(c *relschema.Collection, records []Item, q *query.Query) ([]Item, error) {
	if q == nil {
		q = &query.Query{}
	}
	out := make([]Item, 0, len(records))
	for _, record := range records {
		if len(q.Filter) > 0 {
			ok, err := m.matches(c.Name, record, q.Filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if q.Search != nil && *q.Search != "" && !m.searchMatches(c, record, *q.Search) {
			continue
		}
		out = append(out, record)
	}

	if len(q.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, key := range q.Sort {
				desc := strings.HasPrefix(key, "-")
				path := strings.TrimPrefix(key, "-")
				cmp, _ := compareValues(m.pathValue(c, out[i], path), m.pathValue(c, out[j], path))
				if cmp == 0 {
					continue
				}
				if desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	limit := m.limitFor(q)
	offset := 0
	if q.Offset != nil {
		offset = *q.Offset
	}
	if q.Page != nil && *q.Page > 1 && limit > 0 {
		offset = (*q.Page - 1) * limit
	}
	if offset >= len(out) {
		return []Item{}, nil
	}
	out = out[offset:]
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) searchMatches(c *relschema.Collection, record Item, search string) bool {
	needle := strings.ToLower(search)
	for name, field := range c.Fields {
		switch fieldtype.Map(field) {
		case fieldtype.TypeString:
			if s, ok := record[name].(string); ok && strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		case fieldtype.TypeInt, fieldtype.TypeFloat, fieldtype.TypeBigInt:
			if n, ok := toFloat(search); ok {
				if v, ok := toFloat(record[name]); ok && v == n {
					return true
				}
			}
		}
	}
	return false
}

// pathValue follows a dotted path through many-to-one relations. Function
// segments such as year(published_on) are evaluated.
func (m *Memory) pathValue(c *relschema.Collection, record Item, path string) interface{} {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		if component, field, ok := parseFunction(head); ok {
			return m.functionValue(c, record, field, component)
		}
		return record[head]
	}
	kind, _, related := m.schema.FieldRelation(c.Name, head)
	if kind != relschema.RelationManyToOne {
		return nil
	}
	target, ok := m.schema.Collection(related)
	rec := m.find(related, record[head])
	if !ok || rec == nil {
		return nil
	}
	return m.pathValue(target, rec, rest)
}

func parseFunction(segment string) (component, field string, ok bool) {
	open := strings.Index(segment, "(")
	if open <= 0 || !strings.HasSuffix(segment, ")") {
		return "", "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

// matches evaluates a filter against a record.
func (m *Memory) matches(collection string, record Item, filter map[string]interface{}) (bool, error) {
	c, ok := m.schema.Collection(collection)
	if !ok {
		return false, nil
	}
	for key, raw := range filter {
		var (
			ok  bool
			err error
		)
		switch key {
		case "_and":
			ok, err = m.matchAll(collection, record, raw, true)
		case "_or":
			ok, err = m.matchAll(collection, record, raw, false)
		default:
			ok, err = m.matchField(c, record, key, raw)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Memory) matchAll(collection string, record Item, raw interface{}, all bool) (bool, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return false, apierror.InvalidQuery("logical operators take a list of filters")
	}
	for _, item := range list {
		nested, _ := item.(map[string]interface{})
		ok, err := m.matches(collection, record, nested)
		if err != nil {
			return false, err
		}
		if all && !ok {
			return false, nil
		}
		if !all && ok {
			return true, nil
		}
	}
	return all, nil
}

func (m *Memory) matchField(c *relschema.Collection, record Item, key string, raw interface{}) (bool, error) {
	if component, field, ok := parseFunction(key); ok {
		return matchOperators(m.functionValue(c, record, field, component), raw)
	}

	name, branch, polymorphic := strings.Cut(key, "__")
	if polymorphic {
		if kind, rel, _ := m.schema.FieldRelation(c.Name, name); kind == relschema.RelationManyToAny {
			if record[rel.OneCollectionField] != branch {
				return false, nil
			}
			nested, _ := raw.(map[string]interface{})
			rec := m.find(branch, record[name])
			if rec == nil {
				return false, nil
			}
			return m.matches(branch, rec, nested)
		}
	}

	kind, rel, related := m.schema.FieldRelation(c.Name, key)
	nested, isMap := raw.(map[string]interface{})
	switch kind {
	case relschema.RelationManyToOne:
		if isMap && !isOperatorMap(nested) {
			rec := m.find(related, record[key])
			if rec == nil {
				return false, nil
			}
			return m.matches(related, rec, nested)
		}
	case relschema.RelationOneToMany:
		if !isMap {
			break
		}
		children := m.relatedMany(rel, record[c.Primary])
		if none, ok := nested["_none"].(map[string]interface{}); ok {
			for _, child := range children {
				ok, err := m.matches(related, child, none)
				if err != nil || ok {
					return false, err
				}
			}
			return true, nil
		}
		if some, ok := nested["_some"].(map[string]interface{}); ok {
			nested = some
		}
		for _, child := range children {
			ok, err := m.matches(related, child, nested)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return matchOperators(record[key], raw)
}

func isOperatorMap(m map[string]interface{}) bool {
	for key := range m {
		if !strings.HasPrefix(key, "_") {
			return false
		}
	}
	return len(m) > 0
}

func matchOperators(actual, raw interface{}) (bool, error) {
	ops, ok := raw.(map[string]interface{})
	if !ok {
		return equalValues(actual, raw), nil
	}
	for op, expected := range ops {
		ok, err := applyOperator(op, actual, expected)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func applyOperator(op string, actual, expected interface{}) (bool, error) {
	switch op {
	case "_eq":
		return equalValues(actual, expected), nil
	case "_neq":
		return !equalValues(actual, expected), nil
	case "_lt", "_lte", "_gt", "_gte":
		cmp, ok := compareValues(actual, expected)
		if !ok || actual == nil {
			return false, nil
		}
		switch op {
		case "_lt":
			return cmp < 0, nil
		case "_lte":
			return cmp <= 0, nil
		case "_gt":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "_in", "_nin":
		found := false
		for _, candidate := range listValue(expected) {
			if equalValues(actual, candidate) {
				found = true
				break
			}
		}
		return found == (op == "_in"), nil
	case "_between", "_nbetween":
		bounds := listValue(expected)
		if len(bounds) != 2 {
			return false, apierror.InvalidQuery("%q takes exactly two values", op)
		}
		low, okLow := compareValues(actual, bounds[0])
		high, okHigh := compareValues(actual, bounds[1])
		inside := okLow && okHigh && actual != nil && low >= 0 && high <= 0
		return inside == (op == "_between"), nil
	case "_null":
		want, _ := expected.(bool)
		return (actual == nil) == want, nil
	case "_nnull":
		want, _ := expected.(bool)
		return (actual != nil) == want, nil
	case "_empty", "_nempty":
		want, _ := expected.(bool)
		empty := isEmpty(actual)
		if op == "_nempty" {
			empty = !empty
		}
		return empty == want, nil
	case "_contains", "_ncontains", "_icontains", "_nicontains",
		"_starts_with", "_nstarts_with", "_istarts_with", "_nistarts_with",
		"_ends_with", "_nends_with", "_iends_with", "_niends_with":
		return stringOperator(op, actual, expected), nil
	default:
		return false, apierror.InvalidQuery("filter operator %q is not supported by this store", op)
	}
}

func stringOperator(op string, actual, expected interface{}) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	needle := fmt.Sprint(expected)
	name := strings.TrimPrefix(op, "_")
	negate := false
	if strings.HasPrefix(name, "n") {
		negate = true
		name = strings.TrimPrefix(name, "n")
	}
	if strings.HasPrefix(name, "i") {
		s, needle = strings.ToLower(s), strings.ToLower(needle)
		name = strings.TrimPrefix(name, "i")
	}
	var result bool
	switch name {
	case "contains":
		result = strings.Contains(s, needle)
	case "starts_with":
		result = strings.HasPrefix(s, needle)
	case "ends_with":
		result = strings.HasSuffix(s, needle)
	}
	if negate {
		return !result
	}
	return result
}

func listValue(v interface{}) []interface{} {
	switch list := v.(type) {
	case []interface{}:
		return list
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(list, ",")
		out := make([]interface{}, len(parts))
		for i, s := range parts {
			out[i] = strings.TrimSpace(s)
		}
		return out
	default:
		return []interface{}{v}
	}
}

func isEmpty(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []interface{}:
		return len(value) == 0
	case map[string]interface{}:
		return len(value) == 0
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	if x, ok := a.(bool); ok {
		y, ok := b.(bool)
		return ok && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders numbers numerically and everything else as strings.
// nil sorts first.
func compareValues(a, b interface{}) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "15:04:05", "15:04"}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// functionValue evaluates a function component of a field, e.g. year of a date
// or count of a one-to-many field.
func (m *Memory) functionValue(c *relschema.Collection, record Item, field, component string) interface{} {
	if component == "count" {
		kind, rel, _ := m.schema.FieldRelation(c.Name, field)
		if kind == relschema.RelationOneToMany {
			return len(m.relatedMany(rel, record[c.Primary]))
		}
		switch v := record[field].(type) {
		case []interface{}:
			return len(v)
		case map[string]interface{}:
			return len(v)
		case nil:
			return nil
		default:
			return 1
		}
	}
	t, ok := parseTime(record[field])
	if !ok {
		return nil
	}
	switch component {
	case "year":
		return t.Year()
	case "month":
		return int(t.Month())
	case "week":
		_, week := t.ISOWeek()
		return week
	case "day":
		return t.Day()
	case "weekday":
		return int(t.Weekday())
	case "hour":
		return t.Hour()
	case "minute":
		return t.Minute()
	case "second":
		return t.Second()
	default:
		return nil
	}
}
