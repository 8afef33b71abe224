package db

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FilterType decides how a query-string filter value is compared.
type FilterType int

const (
	FilterExact    FilterType = iota // text equality
	FilterInt                        // integer equality; non-numeric values match nothing
	FilterContains                   // case-insensitive substring
)

// FilterConfig maps a query-string filter to its column.
type FilterConfig struct {
	Type   FilterType
	Column string
}

// SearchQuery builds a filtered, paged SELECT plus its matching COUNT.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{table: table, cols: cols, idx: 1}
}

// Add appends a raw WHERE fragment using $N placeholders starting at Idx().
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

func (q *SearchQuery) Idx() int { return q.idx }

// ApplyFilter adds one filter. Empty values are ignored.
func (q *SearchQuery) ApplyFilter(cfg FilterConfig, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch cfg.Type {
	case FilterInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			q.where += " AND FALSE"
			return
		}
		q.Add(fmt.Sprintf("%s = $%d", cfg.Column, q.idx), n)
	case FilterContains:
		q.Add(fmt.Sprintf("%s ILIKE $%d", cfg.Column, q.idx), "%"+value+"%")
	default:
		q.Add(fmt.Sprintf("%s = $%d", cfg.Column, q.idx), value)
	}
}

// ApplyFilters applies every known filter present in params, in a stable
// order so the generated SQL is deterministic.
func (q *SearchQuery) ApplyFilters(params map[string]string, configs map[string]FilterConfig) {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := configs[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		q.ApplyFilter(configs[name], params[name])
	}
}

func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

func (q *SearchQuery) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
}

func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}
