package view

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

// DateLayout is the output format of TO_DATE columns
const DateLayout = "2006-01-02 15:04:05"

// Resolver turns handles into records
type Resolver interface {
	Resolve(h model.Handle) (*model.Record, bool)
}

// Handler computes a column value from a record
type Handler func(res Resolver, rec *model.Record) []string

// Column is a translated column: either a dotted path, optionally wrapped in
// a function, or a handler.
type Column struct {
	Name     string
	Path     []string
	Function string
	Handler  Handler

	location *time.Location
}

// Values returns every value the column yields for rec
func (c Column) Values(res Resolver, rec *model.Record) []string {
	var values []string
	if c.Handler != nil {
		values = c.Handler(res, rec)
	} else {
		values = ResolvePath(res, rec, c.Path)
	}

	if c.Function == "TO_DATE" {
		for i, v := range values {
			values[i] = toDate(v, c.location)
		}
	}
	return values
}

// Value joins the column values with ","
func (c Column) Value(res Resolver, rec *model.Record) (string, bool) {
	values := c.Values(res, rec)
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ","), true
}

var functionCall = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// View maps query column names onto record paths and handlers
type View struct {
	name     string
	strict   bool
	mapped   map[string]string
	handlers map[string]Handler
	location *time.Location
}

// Passthrough accepts every column and reads it as a dotted path
var Passthrough = &View{name: "passthrough", location: time.UTC}

// New creates a strict view: columns that are neither mapped nor handled
// are rejected.
func New(name string, mapped map[string]string, handlers map[string]Handler) *View {
	return &View{
		name:     name,
		strict:   true,
		mapped:   mapped,
		handlers: handlers,
		location: time.UTC,
	}
}

// Name returns the view name
func (v *View) Name() string {
	return v.name
}

// In returns a copy of the view formatting dates in loc
func (v *View) In(loc *time.Location) *View {
	c := *v
	c.location = loc
	return &c
}

// Columns returns the mapped and handled column names, sorted
func (v *View) Columns() []string {
	out := make([]string, 0, len(v.mapped)+len(v.handlers))
	for name := range v.mapped {
		out = append(out, name)
	}
	for name := range v.handlers {
		if _, ok := v.mapped[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Column translates a column name
func (v *View) Column(name string) (Column, error) {
	if h, ok := v.handlers[name]; ok {
		return Column{Name: name, Handler: h, location: v.location}, nil
	}

	def, ok := v.mapped[name]
	if !ok {
		if v.strict {
			return Column{}, errors.UnknownColumn(v.name, name)
		}
		def = name
	}

	col := Column{Name: name, location: v.location}
	if m := functionCall.FindStringSubmatch(def); m != nil {
		col.Function = strings.ToUpper(m[1])
		def = m[2]
	}
	col.Path = strings.Split(def, ".")
	return col, nil
}

// ResolvePath walks a dotted path from rec. Each step may fan out over link,
// child and list properties; the result holds every reachable value.
func ResolvePath(res Resolver, rec *model.Record, path []string) []string {
	nodes := []interface{}{rec}

	for _, segment := range path {
		var next []interface{}
		for _, node := range nodes {
			switch n := node.(type) {
			case *model.Record:
				next = append(next, field(res, n, segment)...)
			case *model.RuntimeState:
				if v, err := n.Get(segment); err == nil {
					next = append(next, v)
				}
			}
		}
		nodes = next
	}

	values := make([]string, 0, len(nodes))
	for _, node := range nodes {
		switch n := node.(type) {
		case string:
			values = append(values, n)
		case *model.Record:
			values = append(values, n.Name)
		}
	}
	return values
}

func field(res Resolver, rec *model.Record, name string) []interface{} {
	if v, ok := rec.Attr(name); ok {
		return []interface{}{v}
	}
	if name == "status" {
		if rec.Status == nil {
			return nil
		}
		return []interface{}{rec.Status}
	}
	if handles, ok := rec.Links[name]; ok {
		out := make([]interface{}, 0, len(handles))
		for _, h := range handles {
			if linked, ok := res.Resolve(h); ok {
				out = append(out, linked)
			}
		}
		return out
	}
	if groups, ok := rec.Memberships[name]; ok {
		out := make([]interface{}, 0, len(groups))
		for _, g := range groups {
			out = append(out, g)
		}
		return out
	}
	if children, ok := rec.Children[name]; ok {
		out := make([]interface{}, 0, len(children))
		for _, c := range children {
			out = append(out, c)
		}
		return out
	}
	if items, ok := rec.Lists[name]; ok {
		out := make([]interface{}, 0, len(items))
		for _, s := range items {
			out = append(out, s)
		}
		return out
	}
	return nil
}

func toDate(value string, loc *time.Location) string {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return value
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(n, 0).In(loc).Format(DateLayout)
}
