package postgres

import (
	"reflect"
	"sync"
)

// rowLayout is the flattened column layout of a row type. Embedded structs
// (entity.Batch inside batchRow, inventory.Reservation inside reservationRow)
// contribute their columns in declaration order.
type rowLayout struct {
	columns []string
	paths   [][]int
	byName  map[string]int
}

var layouts sync.Map // reflect.Type -> *rowLayout

func layoutOf(t reflect.Type) *rowLayout {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := layouts.Load(t); ok {
		return cached.(*rowLayout)
	}

	l := &rowLayout{byName: map[string]int{}}
	if t.Kind() == reflect.Struct {
		l.build(collect(t, nil))
	}
	actual, _ := layouts.LoadOrStore(t, l)
	return actual.(*rowLayout)
}

type taggedField struct {
	column string
	path   []int
}

func collect(t reflect.Type, prefix []int) []taggedField {
	var out []taggedField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, collect(f.Type, path)...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			out = append(out, taggedField{column: tag, path: path})
		}
	}
	return out
}

// build keeps declaration order. As with Go field promotion, the
// shallowest field wins when a column name repeats.
func (l *rowLayout) build(fields []taggedField) {
	best := make(map[string]int, len(fields))
	for i, f := range fields {
		if j, ok := best[f.column]; !ok || len(f.path) < len(fields[j].path) {
			best[f.column] = i
		}
	}
	for i, f := range fields {
		if best[f.column] != i {
			continue
		}
		l.byName[f.column] = len(l.columns)
		l.columns = append(l.columns, f.column)
		l.paths = append(l.paths, f.path)
	}
}

func structValue(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.Kind() == reflect.Struct
}

// Columns returns the db columns of row type T in declaration order.
// Repositories resolve them once at package init:
//
//	var movementColumns = Columns[entity.Movement]()
func Columns[T any]() []string {
	l := layoutOf(reflect.TypeOf((*T)(nil)))
	return append([]string(nil), l.columns...)
}

// RowMap maps each db column of v to its value, for squirrel SetMap.
// It returns nil when v is not a struct.
func RowMap(v any) map[string]any {
	rv, ok := structValue(v)
	if !ok {
		return nil
	}
	l := layoutOf(rv.Type())
	out := make(map[string]any, len(l.columns))
	for i, c := range l.columns {
		out[c] = rv.FieldByIndex(l.paths[i]).Interface()
	}
	return out
}

// RowValues returns the values of v for columns, in that order, as one
// COPY or multi-row INSERT row. Unknown columns yield nil.
func RowValues(v any, columns []string) []any {
	vals := make([]any, len(columns))
	rv, ok := structValue(v)
	if !ok {
		return vals
	}
	l := layoutOf(rv.Type())
	for i, c := range columns {
		if idx, found := l.byName[c]; found {
			vals[i] = rv.FieldByIndex(l.paths[idx]).Interface()
		}
	}
	return vals
}
