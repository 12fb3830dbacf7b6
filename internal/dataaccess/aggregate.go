package dataaccess

import (
	"fmt"
	"math"
	"strings"

	"collections-graphql/internal/apierror"
	"collections-graphql/internal/query"
	"collections-graphql/internal/relschema"
)

// aggregate computes one row per group. Each row carries the group values both
// at the top level and under "group", plus one entry per requested method.
func (m *Memory) aggregate(c *relschema.Collection, records []Item, q *query.Query) ([]Item, error) {
	unpaged := q.Clone()
	unpaged.Limit, unpaged.Offset, unpaged.Page = query.IntPtr(-1), nil, nil
	unpaged.Sort = nil
	selected, err := m.selectRecords(c, records, unpaged)
	if err != nil {
		return nil, err
	}

	var (
		order  []string
		groups = map[string][]Item{}
		keys   = map[string]Item{}
	)
	for _, record := range selected {
		group := Item{}
		parts := make([]string, 0, len(q.Group))
		for _, field := range q.Group {
			value := m.pathValue(c, record, field)
			group[field] = value
			parts = append(parts, fmt.Sprintf("%T:%v", value, value))
		}
		id := strings.Join(parts, "|")
		if _, ok := groups[id]; !ok {
			order = append(order, id)
			keys[id] = group
		}
		groups[id] = append(groups[id], record)
	}
	if len(order) == 0 && len(q.Group) == 0 {
		order = []string{""}
		keys[""] = Item{}
	}

	rows := make([]Item, 0, len(order))
	for _, id := range order {
		row := Item{}
		for field, value := range keys[id] {
			row[field] = value
		}
		if len(q.Group) > 0 {
			row["group"] = keys[id]
		}
		for method, fields := range q.Aggregate {
			value, err := aggregateMethod(c, method, fields, groups[id])
			if err != nil {
				return nil, err
			}
			row[method] = value
		}
		rows = append(rows, row)
	}

	if len(q.Sort) > 0 || q.Limit != nil || q.Offset != nil || q.Page != nil {
		paging := &query.Query{Sort: q.Sort, Limit: q.Limit, Offset: q.Offset, Page: q.Page}
		return m.selectRecords(c, rows, paging)
	}
	return rows, nil
}

func aggregateMethod(c *relschema.Collection, method string, fields []string, records []Item) (interface{}, error) {
	if method == "countAll" {
		return len(records), nil
	}
	out := Item{}
	for _, field := range fields {
		if field == "*" {
			out[field] = len(records)
			continue
		}
		if _, ok := c.Fields[field]; !ok {
			return nil, apierror.InvalidQuery("cannot aggregate unknown field %q", field)
		}
		values := make([]interface{}, 0, len(records))
		for _, record := range records {
			if v := record[field]; v != nil {
				values = append(values, v)
			}
		}
		if strings.HasSuffix(method, "Distinct") {
			values = distinct(values)
		}
		switch strings.TrimSuffix(method, "Distinct") {
		case "count":
			out[field] = len(values)
		case "sum":
			out[field] = sumOf(values)
		case "avg":
			if len(values) == 0 {
				out[field] = nil
				continue
			}
			out[field] = sumOf(values) / float64(len(values))
		case "min", "max":
			out[field] = extreme(values, method == "max")
		default:
			return nil, apierror.InvalidQuery("aggregate function %q is not supported", method)
		}
	}
	return out, nil
}

func distinct(values []interface{}) []interface{} {
	seen := map[string]struct{}{}
	out := values[:0:0]
	for _, v := range values {
		key := fmt.Sprintf("%T:%v", v, v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sumOf(values []interface{}) float64 {
	var total float64
	for _, v := range values {
		if n, ok := toFloat(v); ok {
			total += n
		}
	}
	return total
}

func extreme(values []interface{}, largest bool) interface{} {
	var (
		best  float64
		found bool
	)
	for _, v := range values {
		n, ok := toFloat(v)
		if !ok {
			continue
		}
		if !found || (largest && n > best) || (!largest && n < best) {
			best, found = n, true
		}
	}
	if !found || math.IsNaN(best) {
		return nil
	}
	return best
}
