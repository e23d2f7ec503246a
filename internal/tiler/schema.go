package tiler

import (
	"reflect"

	"github.com/paulmach/orb/geojson"
)

// Field kinds, named as vector tile consumers expect them in layer metadata.
const (
	KindBoolean = "boolean"
	KindNumber  = "number"
	KindString  = "string"
	KindObject  = "object"
)

// FieldSchema maps a tag name to the kind of its last observed value. It
// grows over the whole traversal and is only complete once it ends.
type FieldSchema map[string]string

// Fold records every tag of props. A later kind for the same name wins.
func (s FieldSchema) Fold(props geojson.Properties) {
	for name, v := range props {
		s[name] = KindOf(v)
	}
}

// KindOf classifies a tag value.
func KindOf(v interface{}) string {
	switch v.(type) {
	case bool:
		return KindBoolean
	case string:
		return KindString
	case nil:
		return KindObject
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Bool:
		return KindBoolean
	case reflect.String:
		return KindString
	}
	return KindObject
}
