package sql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
)

// TagName is the struct tag holding a field's column name.
const TagName = "db"

// ColumnValue returns the value of column c on entity. Entities are structs
// (or pointers to structs) and map[string]any. Struct fields are matched by
// their `db` tag, then by the camelized column name, then by a
// case-insensitive comparison ignoring underscores.
func ColumnValue(entity any, c string) (any, error) {
	v, err := lookup(reflect.ValueOf(entity), c)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// PathValue follows a dotted path ("lines.product") on entity and returns
// the reached value. A nil pointer along the path yields an invalid Value.
func PathValue(entity any, path string) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if path == "" {
		return v, nil
	}
	for _, seg := range strings.Split(path, ".") {
		var err error
		if v, err = lookup(v, seg); err != nil {
			return reflect.Value{}, fmt.Errorf("path %q: %w", path, err)
		}
		if !v.IsValid() {
			return v, nil
		}
	}
	return v, nil
}

func lookup(v reflect.Value, name string) (reflect.Value, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, nil
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("unsupported map key type %s", v.Type().Key())
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return reflect.Value{}, nil
		}
		return mv, nil
	case reflect.Struct:
		if i, ok := fieldIndex(v.Type(), name); ok {
			return v.FieldByIndex(i), nil
		}
		return reflect.Value{}, fmt.Errorf("%s has no field for %q", v.Type(), name)
	default:
		return reflect.Value{}, fmt.Errorf("cannot read %q from %s", name, v.Type())
	}
}

func fieldIndex(t reflect.Type, name string) ([]int, bool) {
	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if tag, _, _ := strings.Cut(f.Tag.Get(TagName), ","); f.IsExported() && tag == name {
			return f.Index, true
		}
	}
	camel := inflect.Camelize(name)
	for _, f := range fields {
		if f.IsExported() && f.Name == camel {
			return f.Index, true
		}
	}
	folded := fold(name)
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && fold(f.Name) == folded {
			return f.Index, true
		}
	}
	return nil, false
}

func fold(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}
