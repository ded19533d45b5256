package query

import (
	"github.com/Icinga/icingaweb2-sub007/internal/model"
	"github.com/Icinga/icingaweb2-sub007/internal/view"
)

// ResultList holds the identifiers a query matched. Records are looked up
// from the source on every access, so a list always reflects the current
// state of the graph it was taken from.
type ResultList struct {
	src     Source
	columns []view.Column
	handles []model.Handle
}

func newResultList(src Source, columns []view.Column, idx Indices) *ResultList {
	handles := make([]model.Handle, 0, idx.Len())
	for _, ti := range idx {
		for _, name := range ti.Names {
			handles = append(handles, model.Handle{Type: ti.Type, Name: name})
		}
	}
	return &ResultList{src: src, columns: columns, handles: handles}
}

// Len returns the number of matched identifiers
func (l *ResultList) Len() int {
	return len(l.handles)
}

// Handles returns the matched identifiers in result order
func (l *ResultList) Handles() []model.Handle {
	out := make([]model.Handle, len(l.handles))
	copy(out, l.handles)
	return out
}

// At returns the record at position i. It reports false when the record has
// been removed since the query ran.
func (l *ResultList) At(i int) (*model.Record, bool) {
	if i < 0 || i >= len(l.handles) {
		return nil, false
	}
	return l.src.Get(l.handles[i].Type, l.handles[i].Name)
}

// Row projects the record at position i onto the declared columns
func (l *ResultList) Row(i int) map[string]string {
	rec, ok := l.At(i)
	if !ok {
		return nil
	}
	return l.project(rec)
}

// Records resolves every entry, skipping removed records
func (l *ResultList) Records() []*model.Record {
	out := make([]*model.Record, 0, len(l.handles))
	for i := range l.handles {
		if rec, ok := l.At(i); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Rows projects every entry onto the declared columns
func (l *ResultList) Rows() []map[string]string {
	out := make([]map[string]string, 0, len(l.handles))
	it := l.Iterator()
	for it.Next() {
		out = append(out, it.Row())
	}
	return out
}

func (l *ResultList) project(rec *model.Record) map[string]string {
	row := make(map[string]string, len(l.columns))
	for _, col := range l.columns {
		v, _ := col.Value(l.src, rec)
		row[col.Name] = v
	}
	return row
}

// Iterator walks a result list
type Iterator struct {
	list    *ResultList
	pos     int
	current *model.Record
}

// Iterator returns an iterator positioned before the first entry
func (l *ResultList) Iterator() *Iterator {
	return &Iterator{list: l, pos: -1}
}

// Next moves to the next record that still exists
func (it *Iterator) Next() bool {
	for it.pos+1 < len(it.list.handles) {
		it.pos++
		if rec, ok := it.list.At(it.pos); ok {
			it.current = rec
			return true
		}
	}
	it.current = nil
	return false
}

// Record returns the current record
func (it *Iterator) Record() *model.Record {
	return it.current
}

// Handle returns the identifier of the current record
func (it *Iterator) Handle() model.Handle {
	if it.pos < 0 || it.pos >= len(it.list.handles) {
		return model.Handle{}
	}
	return it.list.handles[it.pos]
}

// Row projects the current record onto the declared columns
func (it *Iterator) Row() map[string]string {
	if it.current == nil {
		return nil
	}
	return it.list.project(it.current)
}
