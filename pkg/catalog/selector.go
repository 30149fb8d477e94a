// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package catalog

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-dlm/pkg/common"
)

// Op is a comparison operator usable in a selector predicate.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIn    Op = "in"
)

var sqlOps = map[Op]string{
	OpEq:    "=",
	OpNeq:   "<>",
	OpLt:    "<",
	OpLte:   "<=",
	OpGt:    ">",
	OpGte:   ">=",
	OpLike:  "LIKE",
	OpILike: "ILIKE",
}

// Cond is one predicate over a column. For OpIn, Value must be a []any.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Selector combines predicates. Conds and Nested selectors are joined with
// AND by default, or OR when the selector was built with Or. A zero Selector
// matches every row.
type Selector struct {
	Disjunction bool
	Conds       []Cond
	Nested      []Selector
}

// And builds a conjunctive selector.
func And(conds ...Cond) Selector {
	return Selector{Conds: conds}
}

// Or builds a disjunctive selector.
func Or(conds ...Cond) Selector {
	return Selector{Disjunction: true, Conds: conds}
}

// With returns a copy of s with nested selectors appended.
func (s Selector) With(nested ...Selector) Selector {
	s.Nested = append(s.Nested, nested...)
	return s
}

// Empty reports whether the selector matches every row.
func (s Selector) Empty() bool {
	return len(s.Conds) == 0 && len(s.Nested) == 0
}

// Eq builds an equality predicate.
func Eq(column string, value any) Cond { return Cond{Column: column, Op: OpEq, Value: value} }

// Neq builds an inequality predicate.
func Neq(column string, value any) Cond { return Cond{Column: column, Op: OpNeq, Value: value} }

// Lt builds a less-than predicate.
func Lt(column string, value any) Cond { return Cond{Column: column, Op: OpLt, Value: value} }

// Lte builds a less-than-or-equal predicate.
func Lte(column string, value any) Cond { return Cond{Column: column, Op: OpLte, Value: value} }

// Gt builds a greater-than predicate.
func Gt(column string, value any) Cond { return Cond{Column: column, Op: OpGt, Value: value} }

// Gte builds a greater-than-or-equal predicate.
func Gte(column string, value any) Cond { return Cond{Column: column, Op: OpGte, Value: value} }

// Like builds a case-sensitive pattern predicate (% wildcards).
func Like(column string, pattern string) Cond {
	return Cond{Column: column, Op: OpLike, Value: pattern}
}

// ILike builds a case-insensitive pattern predicate (% wildcards).
func ILike(column string, pattern string) Cond {
	return Cond{Column: column, Op: OpILike, Value: pattern}
}

// In builds a membership predicate.
func In(column string, values ...any) Cond {
	return Cond{Column: column, Op: OpIn, Value: values}
}

// SelectOptions tune a select operation: projection, ordering, limit.
type SelectOptions struct {
	Columns   []string
	OrderBy   string
	OrderDesc bool
	Limit     int
}

// DefaultLimit bounds a select when the caller does not set one.
const DefaultLimit = 1000

// compileSelector translates a Selector into a parameterized SQL fragment.
// Column names are validated against the table whitelist; values only ever
// travel as bind arguments. The translation is a pure function of the
// selector, which keeps injection out by construction.
func compileSelector(table string, s Selector, argStart int) (string, []any, error) {
	if s.Empty() {
		return "", nil, nil
	}

	columns, ok := tableColumns[table]
	if !ok {
		return "", nil, common.E(common.KindInvalidQueryParameters, "unknown table %q", table)
	}

	var (
		parts []string
		args  []any
	)
	n := argStart

	for _, c := range s.Conds {
		if !columns[c.Column] {
			return "", nil, common.E(common.KindInvalidQueryParameters,
				"column %q not queryable on table %q", c.Column, table)
		}
		if c.Op == OpIn {
			values, ok := c.Value.([]any)
			if !ok || len(values) == 0 {
				return "", nil, common.E(common.KindInvalidQueryParameters,
					"in predicate on %q requires a non-empty value list", c.Column)
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = fmt.Sprintf("$%d", n)
				args = append(args, v)
				n++
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(placeholders, ", ")))
			continue
		}
		op, ok := sqlOps[c.Op]
		if !ok {
			return "", nil, common.E(common.KindInvalidQueryParameters, "unknown operator %q", c.Op)
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", c.Column, op, n))
		args = append(args, c.Value)
		n++
	}

	for _, nested := range s.Nested {
		clause, nestedArgs, err := compileSelector(table, nested, n)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		parts = append(parts, clause)
		args = append(args, nestedArgs...)
		n += len(nestedArgs)
	}

	joiner := " AND "
	if s.Disjunction {
		joiner = " OR "
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

// compileOptions validates and renders projection, ordering and limit.
func compileOptions(table string, opts *SelectOptions) (projection, tail string, err error) {
	columns := tableColumns[table]

	projection = "*"
	if opts != nil && len(opts.Columns) > 0 {
		for _, c := range opts.Columns {
			if !columns[c] {
				return "", "", common.E(common.KindInvalidQueryParameters,
					"column %q not selectable on table %q", c, table)
			}
		}
		projection = strings.Join(opts.Columns, ", ")
	}

	limit := DefaultLimit
	if opts != nil && opts.Limit > 0 {
		limit = opts.Limit
	}

	var b strings.Builder
	if opts != nil && opts.OrderBy != "" {
		if !columns[opts.OrderBy] {
			return "", "", common.E(common.KindInvalidQueryParameters,
				"column %q not orderable on table %q", opts.OrderBy, table)
		}
		fmt.Fprintf(&b, " ORDER BY %s", opts.OrderBy)
		if opts.OrderDesc {
			b.WriteString(" DESC")
		}
	}
	fmt.Fprintf(&b, " LIMIT %d", limit)
	return projection, b.String(), nil
}
