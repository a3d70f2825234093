// Package repo – query options and the filter grammar.
//
// This file defines the read-side option structs accepted by the generic
// Repository and translates them into GORM query clauses. The filter
// grammar mirrors what API controllers collect from query strings:
//
//   - nil value            -> column IS NULL
//   - slice value          -> column IN (...)
//   - Condition{Op, Value} -> operator predicate (eq/ne/gt/gte/lt/lte/like/in)
//   - any other scalar     -> column = value
//
// All predicates are AND-ed together and combined with the tenant scope.
// A search term expands to an OR of case-insensitive LIKEs over the
// entity's searchable columns. Column names coming from callers are
// validated against a strict identifier pattern before they reach SQL.
package repo

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/mkarras/go-entity-store/internal/domain"
)

// Condition expresses an operator predicate for one column.
type Condition struct {
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Filters maps column names to predicate values per the package grammar.
type Filters map[string]any

// FindOptions tunes a single-record read.
type FindOptions struct {
	// Relations lists association names to preload.
	Relations []string
	// Fields restricts the selected columns; empty means all.
	Fields []string
	// IncludeDeleted also matches soft-deleted records.
	IncludeDeleted bool
	// Uncached bypasses the cache for this read.
	Uncached bool
}

// ListOptions tunes a paginated list read.
type ListOptions struct {
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
	SortField      string   `json:"sort_field"`
	SortDir        string   `json:"sort_dir"`
	Filters        Filters  `json:"filters,omitempty"`
	Search         string   `json:"search,omitempty"`
	Relations      []string `json:"relations,omitempty"`
	IncludeDeleted bool     `json:"include_deleted,omitempty"`
	Uncached       bool     `json:"-"`
}

// identRE matches the column identifiers accepted from callers. Anything
// else is rejected before query composition.
var identRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// assocRE matches GORM association paths for preloading (e.g. "Variants"
// or "Variants.Prices").
var assocRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)*$`)

// foldCaser normalizes search terms so matching is case-insensitive for
// non-ASCII input as well.
var foldCaser = cases.Fold()

// applyFilters translates the filter map into WHERE clauses. Keys are
// processed in sorted order so the generated SQL is deterministic.
func applyFilters(q *gorm.DB, filters Filters) (*gorm.DB, error) {
	if len(filters) == 0 {
		return q, nil
	}
	cols := make([]string, 0, len(filters))
	for col := range filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		if !identRE.MatchString(col) {
			return nil, domain.NewValidationError(col, "invalid filter column")
		}
		var err error
		switch v := filters[col].(type) {
		case nil:
			q = q.Where(col + " IS NULL")
		case Condition:
			q, err = applyCondition(q, col, v)
		case *Condition:
			if v == nil {
				q = q.Where(col + " IS NULL")
			} else {
				q, err = applyCondition(q, col, *v)
			}
		default:
			if isSliceValue(v) {
				q = q.Where(col+" IN ?", v)
			} else {
				q = q.Where(col+" = ?", v)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// applyCondition translates a single operator predicate.
func applyCondition(q *gorm.DB, col string, c Condition) (*gorm.DB, error) {
	switch strings.ToLower(c.Op) {
	case "eq":
		if c.Value == nil {
			return q.Where(col + " IS NULL"), nil
		}
		return q.Where(col+" = ?", c.Value), nil
	case "ne":
		if c.Value == nil {
			return q.Where(col + " IS NOT NULL"), nil
		}
		return q.Where(col+" <> ?", c.Value), nil
	case "gt":
		return q.Where(col+" > ?", c.Value), nil
	case "gte":
		return q.Where(col+" >= ?", c.Value), nil
	case "lt":
		return q.Where(col+" < ?", c.Value), nil
	case "lte":
		return q.Where(col+" <= ?", c.Value), nil
	case "like":
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, domain.NewValidationError(col, "like operator requires a string pattern")
		}
		return q.Where(col+" LIKE ?", pattern), nil
	case "in":
		if !isSliceValue(c.Value) {
			return nil, domain.NewValidationError(col, "in operator requires a slice value")
		}
		return q.Where(col+" IN ?", c.Value), nil
	default:
		return nil, domain.NewValidationError(col, fmt.Sprintf("unknown filter operator %q", c.Op))
	}
}

// applySearch expands a free-text term into an OR of case-insensitive
// LIKEs over the schema's searchable columns. Empty terms and entities
// without searchable columns pass through unchanged.
func applySearch(q *gorm.DB, term string, searchable []string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(searchable) == 0 {
		return q
	}
	needle := "%" + foldCaser.String(term) + "%"
	conds := make([]string, 0, len(searchable))
	args := make([]any, 0, len(searchable))
	for _, col := range searchable {
		conds = append(conds, "LOWER("+col+") LIKE ?")
		args = append(args, needle)
	}
	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// orderClause validates the requested sort and renders the ORDER BY
// expression. The record ID breaks ties so pagination stays stable when
// many rows share a timestamp.
func orderClause(field, dir string) (string, error) {
	if field == "" {
		field = "created_at"
	}
	if !identRE.MatchString(field) {
		return "", domain.NewValidationError("sort_field", "invalid sort column")
	}
	switch strings.ToLower(dir) {
	case "", "desc":
		dir = "DESC"
	case "asc":
		dir = "ASC"
	default:
		return "", domain.NewValidationError("sort_dir", "sort direction must be asc or desc")
	}
	return field + " " + dir + ", id", nil
}

// validateAssociations checks preload paths before they reach GORM.
func validateAssociations(rels []string) error {
	for _, rel := range rels {
		if !assocRE.MatchString(rel) {
			return domain.NewValidationError("relations", fmt.Sprintf("invalid association path %q", rel))
		}
	}
	return nil
}

// validateFields checks a column projection list.
func validateFields(fields []string) error {
	for _, f := range fields {
		if !identRE.MatchString(f) {
			return domain.NewValidationError("fields", fmt.Sprintf("invalid column %q", f))
		}
	}
	return nil
}

// isSliceValue reports whether v should be treated as an IN-list.
// Byte slices are scalars (blobs), not lists.
func isSliceValue(v any) bool {
	if v == nil {
		return false
	}
	if _, isBytes := v.([]byte); isBytes {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
