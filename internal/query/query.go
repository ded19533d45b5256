package query

import (
	"sort"
	"strings"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/validation"
	"github.com/Icinga/icingaweb2-sub007/internal/view"
)

// Source is the read side of an object graph
type Source interface {
	Names(typeName string) []string
	Get(typeName, name string) (*model.Record, bool)
	Resolve(h model.Handle) (*model.Record, bool)
}

// Direction of an order spec
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// ParseDirection maps "desc" (any case) to Desc and everything else to Asc
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

// OrderFunc computes a sort key for a record
type OrderFunc func(res view.Resolver, rec *model.Record) string

// GroupFunc aggregates the filtered and ordered identifiers of a query
type GroupFunc func(src Source, idx Indices) []Aggregate

// TypeIndex lists the matching identifiers of one base type
type TypeIndex struct {
	Type  string
	Names []string
}

// Indices are the matching identifiers per base type, in target order
type Indices []TypeIndex

// Len returns the total number of identifiers
func (idx Indices) Len() int {
	n := 0
	for _, ti := range idx {
		n += len(ti.Names)
	}
	return n
}

// Aggregate is one row of a grouped result
type Aggregate struct {
	Columns  map[string]string
	Count    int
	Counters map[string]int
}

type orderSpec struct {
	column string
	fn     OrderFunc
	dir    Direction
}

// Query describes a selection over an object graph. It is evaluated only by
// the Fetch methods and Count.
type Query struct {
	src       Source
	target    string
	types     []string
	columns   []string
	view      *view.View
	validator *validation.Validator

	filters      []Filter
	orders       []orderSpec
	groupColumns []string
	groupFn      GroupFunc
	limit        int
	offset       int

	err error
}

// New creates a query over src for a target such as "hosts" or "groups"
func New(src Source, target string, columns ...string) (*Query, error) {
	types, err := BaseTypes(target)
	if err != nil {
		return nil, err
	}
	return &Query{
		src:       src,
		target:    target,
		types:     types,
		columns:   columns,
		view:      view.Passthrough,
		validator: validation.NewValidator(),
	}, nil
}

// Target returns the target name
func (q *Query) Target() string {
	return q.target
}

// Columns returns the declared output columns
func (q *Query) Columns() []string {
	out := make([]string, len(q.columns))
	copy(out, q.columns)
	return out
}

// View returns the column mapping in use
func (q *Query) View() *view.View {
	return q.view
}

// WithView sets the column mapping
func (q *Query) WithView(v *view.View) *Query {
	q.view = v
	return q
}

// WithValidator replaces the descriptor validator
func (q *Query) WithValidator(v *validation.Validator) *Query {
	q.validator = v
	return q
}

// Where adds a filter. Multiple filters are joined with AND.
func (q *Query) Where(f Filter) *Query {
	if f != nil {
		q.filters = append(q.filters, f)
	}
	return q
}

// WhereExpr parses expr with ParseFilter and adds it. A parse failure is
// reported by the next Fetch or Count.
func (q *Query) WhereExpr(expr string, args ...interface{}) *Query {
	f, err := ParseFilter(expr, args...)
	if err != nil {
		if q.err == nil {
			q.err = err
		}
		return q
	}
	return q.Where(f)
}

// Order adds an order spec. The column may carry its direction, as in
// "host_name DESC"; an explicit dir of 0 then takes it from there.
func (q *Query) Order(column string, dir Direction) *Query {
	fields := strings.Fields(column)
	if len(fields) == 2 {
		column = fields[0]
		if dir == 0 {
			dir = ParseDirection(fields[1])
		}
	}
	if dir == 0 {
		dir = Asc
	}
	q.orders = append(q.orders, orderSpec{column: column, dir: dir})
	return q
}

// OrderByFunc adds an order spec computed by fn
func (q *Query) OrderByFunc(fn OrderFunc, dir Direction) *Query {
	if dir == 0 {
		dir = Asc
	}
	q.orders = append(q.orders, orderSpec{fn: fn, dir: dir})
	return q
}

// GroupByColumns groups the result by the tuple of the given columns
func (q *Query) GroupByColumns(columns ...string) *Query {
	q.groupColumns = columns
	q.groupFn = nil
	return q
}

// GroupByFunc groups the result with fn
func (q *Query) GroupByFunc(fn GroupFunc) *Query {
	q.groupFn = fn
	q.groupColumns = nil
	return q
}

// Grouped reports whether a grouping is configured
func (q *Query) Grouped() bool {
	return q.groupFn != nil || len(q.groupColumns) > 0
}

// Limit sets the per type window. A count of 0 means unbounded.
func (q *Query) Limit(count, offset int) *Query {
	q.limit = count
	q.offset = offset
	return q
}

// Err returns a deferred descriptor error
func (q *Query) Err() error {
	return q.err
}

// Clone copies the descriptor
func (q *Query) Clone() *Query {
	c := *q
	c.types = append([]string(nil), q.types...)
	c.columns = append([]string(nil), q.columns...)
	c.filters = append([]Filter(nil), q.filters...)
	c.orders = append([]orderSpec(nil), q.orders...)
	c.groupColumns = append([]string(nil), q.groupColumns...)
	return &c
}

// FetchAll returns the matching records as a lazily resolved list
func (q *Query) FetchAll() (*ResultList, error) {
	if q.Grouped() {
		return nil, errors.GroupedResult("FetchAll")
	}
	columns, err := q.outputColumns()
	if err != nil {
		return nil, err
	}
	idx, err := q.indices()
	if err != nil {
		return nil, err
	}
	return newResultList(q.src, columns, idx), nil
}

// FetchRow returns the first matching record
func (q *Query) FetchRow() (*model.Record, bool, error) {
	list, err := q.FetchAll()
	if err != nil {
		return nil, false, err
	}
	it := list.Iterator()
	if !it.Next() {
		return nil, false, nil
	}
	return it.Record(), true, nil
}

// FetchPairs maps the value of the first declared column to the value of
// the second. Exactly two columns must be declared.
func (q *Query) FetchPairs() (map[string]string, error) {
	if len(q.columns) != 2 {
		return nil, errors.PairsColumns(len(q.columns))
	}
	list, err := q.FetchAll()
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]string, list.Len())
	it := list.Iterator()
	for it.Next() {
		row := it.Row()
		pairs[row[q.columns[0]]] = row[q.columns[1]]
	}
	return pairs, nil
}

// FetchGroups runs a grouped query
func (q *Query) FetchGroups() ([]Aggregate, error) {
	if !q.Grouped() {
		return nil, errors.GroupedResult("FetchGroups without grouping")
	}
	idx, err := q.indices()
	if err != nil {
		return nil, err
	}
	if q.groupFn != nil {
		return q.groupFn(q.src, idx), nil
	}
	return q.groupByColumns(idx)
}

// Count returns the number of matching records ignoring pagination, or the
// number of groups of a grouped query
func (q *Query) Count() (int, error) {
	c := q.Clone().Limit(0, 0)
	if c.Grouped() {
		groups, err := c.FetchGroups()
		return len(groups), err
	}
	idx, err := c.indices()
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}

func (q *Query) outputColumns() ([]view.Column, error) {
	if err := q.validator.ValidateColumns(q.columns); err != nil {
		return nil, err
	}
	out := make([]view.Column, 0, len(q.columns))
	for _, name := range q.columns {
		col, err := q.view.Column(name)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// indices filters, orders and, unless grouped, paginates each base type
func (q *Query) indices() (Indices, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := q.validator.ValidatePagination(q.limit, q.offset); err != nil {
		return nil, err
	}
	if err := q.validator.ValidateOrderCount(len(q.orders)); err != nil {
		return nil, err
	}

	match, err := q.predicate()
	if err != nil {
		return nil, err
	}
	keys, err := q.sortKeys()
	if err != nil {
		return nil, err
	}

	idx := make(Indices, 0, len(q.types))
	for _, typeName := range q.types {
		var records []*model.Record
		for _, name := range q.src.Names(typeName) {
			rec, ok := q.src.Get(typeName, name)
			if !ok || !match(rec) {
				continue
			}
			records = append(records, rec)
		}

		q.sort(records, keys)

		names := make([]string, len(records))
		for i, rec := range records {
			names[i] = rec.Name
		}
		if !q.Grouped() {
			names = paginate(names, q.limit, q.offset)
		}
		idx = append(idx, TypeIndex{Type: typeName, Names: names})
	}
	return idx, nil
}

func (q *Query) predicate() (predicate, error) {
	if len(q.filters) == 0 {
		return func(*model.Record) bool { return true }, nil
	}
	for _, f := range q.filters {
		if err := q.validateFilterColumns(f); err != nil {
			return nil, err
		}
	}
	return compileFilter(And(q.filters...), q.view, q.src)
}

func (q *Query) validateFilterColumns(f Filter) error {
	switch n := f.(type) {
	case *Condition:
		return q.validator.ValidateColumn(n.Column)
	case *Group:
		for _, item := range n.Items {
			if err := q.validateFilterColumns(item); err != nil {
				return err
			}
		}
	}
	return nil
}

type sortKey func(rec *model.Record) (string, bool)

func (q *Query) sortKeys() ([]sortKey, error) {
	keys := make([]sortKey, 0, len(q.orders))
	for _, o := range q.orders {
		if o.fn != nil {
			fn := o.fn
			keys = append(keys, func(rec *model.Record) (string, bool) {
				return fn(q.src, rec), true
			})
			continue
		}
		if err := q.validator.ValidateColumn(o.column); err != nil {
			return nil, err
		}
		col, err := q.view.Column(o.column)
		if err != nil {
			return nil, err
		}
		keys = append(keys, func(rec *model.Record) (string, bool) {
			return col.Value(q.src, rec)
		})
	}
	return keys, nil
}

// sort orders records by the sum of the natural comparisons of every order
// spec, each weighted by its direction. Keys missing on either side count 0.
func (q *Query) sort(records []*model.Record, keys []sortKey) {
	if len(keys) == 0 || len(records) < 2 {
		return
	}

	type keyed struct {
		rec    *model.Record
		values []string
		ok     []bool
	}
	items := make([]keyed, len(records))
	for i, rec := range records {
		k := keyed{rec: rec, values: make([]string, len(keys)), ok: make([]bool, len(keys))}
		for j, key := range keys {
			k.values[j], k.ok[j] = key(rec)
		}
		items[i] = k
	}

	sort.SliceStable(items, func(i, j int) bool {
		sum := 0
		for k, o := range q.orders {
			if !items[i].ok[k] || !items[j].ok[k] {
				continue
			}
			sum += int(o.dir) * NaturalCompare(items[i].values[k], items[j].values[k])
		}
		return sum < 0
	})

	for i, k := range items {
		records[i] = k.rec
	}
}

func (q *Query) groupByColumns(idx Indices) ([]Aggregate, error) {
	cols := make([]view.Column, 0, len(q.groupColumns))
	for _, name := range q.groupColumns {
		if err := q.validator.ValidateColumn(name); err != nil {
			return nil, err
		}
		col, err := q.view.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	var groups []Aggregate
	positions := make(map[string]int)
	for _, ti := range idx {
		for _, name := range ti.Names {
			rec, ok := q.src.Get(ti.Type, name)
			if !ok {
				continue
			}
			values := make([]string, len(cols))
			for i, col := range cols {
				values[i], _ = col.Value(q.src, rec)
			}
			key := strings.Join(values, "\x00")

			if pos, ok := positions[key]; ok {
				groups[pos].Count++
				continue
			}
			columns := make(map[string]string, len(cols))
			for i, col := range cols {
				columns[col.Name] = values[i]
			}
			positions[key] = len(groups)
			groups = append(groups, Aggregate{Columns: columns, Count: 1})
		}
	}
	return groups, nil
}

// paginate slices names to [offset, offset+limit). A limit of 0 is unbounded.
func paginate(names []string, limit, offset int) []string {
	if offset >= len(names) {
		return []string{}
	}
	names = names[offset:]
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	return names
}
