package translate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
)

// Sanitize converts a raw argument bag into a canonical query. Unknown keys are
// ignored; malformed known keys are rejected with an invalid-query error.
func Sanitize(raw map[string]interface{}) (*query.Query, error) {
	q := &query.Query{}
	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case "fields":
			q.Fields, err = stringList(key, value)
		case "sort":
			q.Sort, err = stringList(key, value)
		case "groupBy", "group":
			q.Group, err = stringList(key, value)
		case "limit":
			q.Limit, err = boundedInt(key, value, -1)
		case "offset":
			q.Offset, err = boundedInt(key, value, 0)
		case "page":
			q.Page, err = boundedInt(key, value, 1)
		case "filter":
			q.Filter, err = objectArg(key, value)
		case "search":
			s, ok := value.(string)
			if !ok {
				err = apierror.InvalidQuery("%q must be a string", key)
			} else {
				q.Search = query.StringPtr(s)
			}
		case "deep":
			q.Deep, err = objectArg(key, value)
		case "alias":
			q.Alias, err = aliasArg(value)
		case "aggregate":
			q.Aggregate, err = aggregateArg(value)
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// ToMap renders the set parts of a query as a plain map keyed by argument name.
func ToMap(q *query.Query) map[string]interface{} {
	out := map[string]interface{}{}
	if q == nil {
		return out
	}
	if q.Fields != nil {
		out["fields"] = toInterfaces(q.Fields)
	}
	if q.Sort != nil {
		out["sort"] = toInterfaces(q.Sort)
	}
	if q.Group != nil {
		out["group"] = toInterfaces(q.Group)
	}
	if q.Limit != nil {
		out["limit"] = *q.Limit
	}
	if q.Offset != nil {
		out["offset"] = *q.Offset
	}
	if q.Page != nil {
		out["page"] = *q.Page
	}
	if q.Filter != nil {
		out["filter"] = query.DeepCopy(q.Filter)
	}
	if q.Search != nil {
		out["search"] = *q.Search
	}
	if q.Deep != nil {
		out["deep"] = query.DeepCopy(q.Deep)
	}
	if q.Alias != nil {
		alias := make(map[string]interface{}, len(q.Alias))
		for k, v := range q.Alias {
			alias[k] = v
		}
		out["alias"] = alias
	}
	if q.Aggregate != nil {
		agg := make(map[string]interface{}, len(q.Aggregate))
		for k, v := range q.Aggregate {
			agg[k] = toInterfaces(v)
		}
		out["aggregate"] = agg
	}
	return out
}

// FromDeep decodes a deep directive node ("_limit", "_filter", ...) back into a query.
func FromDeep(node map[string]interface{}) (*query.Query, error) {
	raw := map[string]interface{}{}
	for key, value := range node {
		if strings.HasPrefix(key, "_") && key != "_alias" {
			raw[strings.TrimPrefix(key, "_")] = value
		}
	}
	q, err := Sanitize(raw)
	if err != nil {
		return nil, err
	}
	if aliases, ok := node["_alias"]; ok {
		alias, err := aliasArg(aliases)
		if err != nil {
			return nil, err
		}
		q.Alias = alias
	}
	return q, nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringList(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, apierror.InvalidQuery("%q must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, apierror.InvalidQuery("%q must be a string or a list of strings", key)
	}
}

func boundedInt(key string, value interface{}, min int) (*int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			return nil, apierror.InvalidQuery("%q must be an integer", key)
		}
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, apierror.InvalidQuery("%q must be an integer", key)
		}
		n = parsed
	default:
		return nil, apierror.InvalidQuery("%q must be an integer", key)
	}
	if n < min {
		return nil, apierror.InvalidQuery("%q must be at least %d", key, min)
	}
	return query.IntPtr(n), nil
}

func objectArg(key string, value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return query.DeepCopy(v).(map[string]interface{}), nil
	case string:
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, apierror.InvalidQuery("%q must be a JSON object: %v", key, err)
		}
		return out, nil
	default:
		return nil, apierror.InvalidQuery("%q must be an object", key)
	}
}

func aliasArg(value interface{}) (map[string]string, error) {
	var raw map[string]interface{}
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, name := range v {
			out[k] = name
		}
		return out, nil
	case map[string]interface{}:
		raw = v
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, apierror.InvalidQuery("\"alias\" must be a JSON object: %v", err)
		}
	default:
		return nil, apierror.InvalidQuery("\"alias\" must be an object")
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, apierror.InvalidQuery("alias %q must map to a field name", k)
		}
		out[k] = s
	}
	return out, nil
}

func aggregateArg(value interface{}) (map[string][]string, error) {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil, apierror.InvalidQuery("\"aggregate\" must be an object")
	}
	out := make(map[string][]string, len(raw))
	for method, fields := range raw {
		list, err := stringList(fmt.Sprintf("aggregate.%s", method), fields)
		if err != nil {
			return nil, err
		}
		out[method] = list
	}
	return out, nil
}
