// Package query defines the canonical query handed to the data-access layer.
package query

// Query is the flat, engine-internal representation of a read. Fields are dot-paths
// in first-seen order; union branches use "parent:collection" segments and function
// leaves use "component(field)" form.
type Query struct {
	Fields    []string               `json:"fields,omitempty"`
	Alias     map[string]string      `json:"alias,omitempty"`
	Filter    map[string]interface{} `json:"filter,omitempty"`
	Sort      []string               `json:"sort,omitempty"`
	Limit     *int                   `json:"limit,omitempty"`
	Offset    *int                   `json:"offset,omitempty"`
	Page      *int                   `json:"page,omitempty"`
	Search    *string                `json:"search,omitempty"`
	Deep      map[string]interface{} `json:"deep,omitempty"`
	Aggregate map[string][]string    `json:"aggregate,omitempty"`
	Group     []string               `json:"group,omitempty"`
}

// HasFields reports whether the query requests any output.
func (q *Query) HasFields() bool {
	return q != nil && len(q.Fields) > 0
}

// Clone returns a copy whose slices and top-level maps are independent.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	out := *q
	out.Fields = append([]string(nil), q.Fields...)
	out.Sort = append([]string(nil), q.Sort...)
	out.Group = append([]string(nil), q.Group...)
	if q.Alias != nil {
		out.Alias = make(map[string]string, len(q.Alias))
		for k, v := range q.Alias {
			out.Alias[k] = v
		}
	}
	if q.Filter != nil {
		out.Filter = DeepCopy(q.Filter).(map[string]interface{})
	}
	if q.Deep != nil {
		out.Deep = DeepCopy(q.Deep).(map[string]interface{})
	}
	if q.Aggregate != nil {
		out.Aggregate = make(map[string][]string, len(q.Aggregate))
		for k, v := range q.Aggregate {
			out.Aggregate[k] = append([]string(nil), v...)
		}
	}
	return &out
}

// WithPrimaryKey returns a copy filtered to a single primary key value, keeping
// any existing filter as a conjunct.
func (q *Query) WithPrimaryKey(primary string, key interface{}) *Query {
	out := q.Clone()
	if out == nil {
		out = &Query{}
	}
	match := map[string]interface{}{primary: map[string]interface{}{"_eq": key}}
	if len(out.Filter) == 0 {
		out.Filter = match
		return out
	}
	out.Filter = map[string]interface{}{"_and": []interface{}{out.Filter, match}}
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

// DeepCopy copies nested maps and slices; other values are shared.
func DeepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = DeepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}
