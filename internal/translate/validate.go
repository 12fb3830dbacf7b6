package translate

import (
	"strings"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
)

// DefaultMaxDepth bounds relational nesting when no explicit limit is configured.
const DefaultMaxDepth = 10

// Limits bounds the relational depth of each part of a translated query.
// A zero value disables the corresponding check.
type Limits struct {
	MaxFieldDepth  int `mapstructure:"max_field_depth"`
	MaxFilterDepth int `mapstructure:"max_filter_depth"`
	MaxDeepDepth   int `mapstructure:"max_deep_depth"`
	MaxSortDepth   int `mapstructure:"max_sort_depth"`
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxFieldDepth:  DefaultMaxDepth,
		MaxFilterDepth: DefaultMaxDepth,
		MaxDeepDepth:   DefaultMaxDepth,
		MaxSortDepth:   DefaultMaxDepth,
	}
}

var (
	listOperators   = map[string]struct{}{"_in": {}, "_nin": {}, "_between": {}, "_nbetween": {}}
	boolOperators   = map[string]struct{}{"_null": {}, "_nnull": {}, "_empty": {}, "_nempty": {}}
	filterOperators = map[string]struct{}{
		"_eq": {}, "_neq": {}, "_lt": {}, "_lte": {}, "_gt": {}, "_gte": {},
		"_in": {}, "_nin": {}, "_null": {}, "_nnull": {}, "_empty": {}, "_nempty": {},
		"_contains": {}, "_ncontains": {}, "_icontains": {}, "_nicontains": {},
		"_starts_with": {}, "_nstarts_with": {}, "_istarts_with": {}, "_nistarts_with": {},
		"_ends_with": {}, "_nends_with": {}, "_iends_with": {}, "_niends_with": {},
		"_between": {}, "_nbetween": {},
		"_intersects": {}, "_nintersects": {}, "_intersects_bbox": {}, "_nintersects_bbox": {},
		"_some": {}, "_none": {},
	}
)

// Validate checks the structure and depth of a translated query.
func Validate(q *query.Query, limits Limits) error {
	if q == nil {
		return nil
	}
	for _, field := range q.Fields {
		if err := checkDepth("fields", pathDepth(field), limits.MaxFieldDepth); err != nil {
			return err
		}
	}
	for _, field := range q.Sort {
		if err := checkDepth("sort", pathDepth(strings.TrimPrefix(field, "-")), limits.MaxSortDepth); err != nil {
			return err
		}
	}
	for key, value := range q.Alias {
		if strings.Contains(key, ".") || strings.Contains(value, ".") {
			return apierror.InvalidQuery("alias %q -> %q must not contain \".\"", key, value)
		}
	}
	if q.Filter != nil {
		if err := validateFilter(q.Filter); err != nil {
			return err
		}
		if err := checkDepth("filter", filterDepth(q.Filter), limits.MaxFilterDepth); err != nil {
			return err
		}
	}
	if q.Deep != nil {
		if err := validateDeep(q.Deep); err != nil {
			return err
		}
		if err := checkDepth("deep", deepDepth(q.Deep), limits.MaxDeepDepth); err != nil {
			return err
		}
	}
	if q.Limit != nil && *q.Limit < -1 {
		return apierror.InvalidQuery("\"limit\" must be at least -1")
	}
	if q.Offset != nil && *q.Offset < 0 {
		return apierror.InvalidQuery("\"offset\" must be at least 0")
	}
	return nil
}

func checkDepth(part string, depth, max int) error {
	if max > 0 && depth > max {
		return apierror.InvalidQuery("%s exceeds maximum relational depth of %d (depth: %d)", part, max, depth)
	}
	return nil
}

// pathDepth counts relational hops in a field path; a plain column has depth 0.
func pathDepth(path string) int {
	return strings.Count(path, ".")
}

// filterDepth counts nested field keys, ignoring operator and logical keys.
func filterDepth(filter map[string]interface{}) int {
	max := 0
	for key, value := range filter {
		switch v := value.(type) {
		case map[string]interface{}:
			d := filterDepth(v)
			if !strings.HasPrefix(key, "_") {
				d++
			}
			if d > max {
				max = d
			}
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					if d := filterDepth(m); d > max {
						max = d
					}
				}
			}
		}
	}
	return max
}

// deepDepth counts nested relation keys; directive keys start with "_".
func deepDepth(deep map[string]interface{}) int {
	max := 0
	for key, value := range deep {
		if strings.HasPrefix(key, "_") {
			continue
		}
		nested, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		if d := deepDepth(nested) + 1; d > max {
			max = d
		}
	}
	return max
}

func validateFilter(filter map[string]interface{}) error {
	for key, value := range filter {
		switch key {
		case "_and", "_or":
			list, ok := value.([]interface{})
			if !ok {
				return apierror.InvalidQuery("%q must be an array", key)
			}
			for _, item := range list {
				nested, ok := item.(map[string]interface{})
				if !ok {
					return apierror.InvalidQuery("%q entries must be objects", key)
				}
				if err := validateFilter(nested); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "_") {
			if err := validateOperator(key, value); err != nil {
				return err
			}
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			if err := validateFilter(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateOperator(operator string, value interface{}) error {
	if _, ok := filterOperators[operator]; !ok {
		return apierror.InvalidQuery("unknown filter operator %q", operator)
	}
	if _, ok := listOperators[operator]; ok {
		switch value.(type) {
		case []interface{}, string:
		default:
			return apierror.InvalidQuery("%q has to be an array of values", operator)
		}
		return nil
	}
	if _, ok := boolOperators[operator]; ok {
		if _, ok := value.(bool); !ok {
			return apierror.InvalidQuery("%q has to be a boolean", operator)
		}
		return nil
	}
	if operator == "_some" || operator == "_none" {
		if nested, ok := value.(map[string]interface{}); ok {
			return validateFilter(nested)
		}
	}
	return nil
}

func validateDeep(deep map[string]interface{}) error {
	for key, value := range deep {
		nested, ok := value.(map[string]interface{})
		if !strings.HasPrefix(key, "_") {
			if !ok {
				return apierror.InvalidQuery("deep entry %q must be an object", key)
			}
			if err := validateDeep(nested); err != nil {
				return err
			}
			continue
		}
		switch key {
		case "_filter":
			if ok {
				if err := validateFilter(nested); err != nil {
					return err
				}
			}
		case "_alias":
			if !ok {
				return apierror.InvalidQuery("\"_alias\" must be an object")
			}
			for alias, name := range nested {
				s, _ := name.(string)
				if strings.Contains(alias, ".") || strings.Contains(s, ".") {
					return apierror.InvalidQuery("alias %q -> %q must not contain \".\"", alias, s)
				}
			}
		}
	}
	return nil
}
