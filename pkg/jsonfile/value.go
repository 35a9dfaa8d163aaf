package jsonfile

import (
	"reflect"
	"strings"
)

// newDefault returns the value used when no file exists yet.
//
// It is the zero value of T, except that pointers, maps and slices are
// allocated so a fresh file holds {} or [] instead of null.
func newDefault[T any]() T {
	var v T

	rv := reflect.ValueOf(&v).Elem()

	switch rv.Kind() {
	case reflect.Pointer:
		rv.Set(reflect.New(rv.Type().Elem()))
	case reflect.Map:
		rv.Set(reflect.MakeMap(rv.Type()))
	case reflect.Slice:
		rv.Set(reflect.MakeSlice(rv.Type(), 0, 0))
	}

	return v
}

// TypePath returns the file name used by [OpenType] and [ReadType] for T:
// the Go type name plus the extension for f.
//
//	TypePath[Settings](FormatIndented)   // "app.Settings.json"
//	TypePath[[]Item](FormatIndented)     // "List(app.Item).json"
//	TypePath[map[string]int](FormatAuto) // "Map(string,int).json"
func TypePath[T any](f Format) string {
	return friendlyTypeName(reflect.TypeOf((*T)(nil)).Elem()) + f.extension()
}

func friendlyTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return friendlyTypeName(t.Elem())
	case reflect.Slice, reflect.Array:
		if t.Name() == "" {
			return "List(" + friendlyTypeName(t.Elem()) + ")"
		}
	case reflect.Map:
		if t.Name() == "" {
			return "Map(" + friendlyTypeName(t.Key()) + "," + friendlyTypeName(t.Elem()) + ")"
		}
	}

	name := t.String()
	if name == "" || name == "interface {}" {
		name = "any"
	}

	// Generic instantiations carry brackets and full import paths.
	return typeNameReplacer.Replace(name)
}

var typeNameReplacer = strings.NewReplacer(
	"[", "(",
	"]", ")",
	"*", "",
	"/", "_",
	" ", "",
)
