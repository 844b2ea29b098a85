// Package magazine handles the bar-feed magazine properties of a machine:
// how complete they are, and filling them from a datasheet PDF.
package magazine

import (
	"reflect"

	"github.com/five82/toolroom/internal/api"
)

// FieldCount is the number of magazine property fields.
var FieldCount = reflect.TypeOf(api.MagazineProperties{}).NumField()

// Filled returns how many fields of p hold a value. Empty strings and nil
// pointers count as missing.
func Filled(p api.MagazineProperties) int {
	v := reflect.ValueOf(p)
	n := 0
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsZero() {
			n++
		}
	}
	return n
}

// Completeness returns the percentage of filled fields, rounded down.
func Completeness(p api.MagazineProperties) int {
	if FieldCount == 0 {
		return 0
	}
	return Filled(p) * 100 / FieldCount
}

// Missing returns the JSON names of the empty fields in declaration order.
func Missing(p api.MagazineProperties) []string {
	v := reflect.ValueOf(p)
	t := v.Type()
	var out []string
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsZero() {
			out = append(out, jsonName(t.Field(i)))
		}
	}
	return out
}

// Merge returns base with every field that is set in update copied over.
// Fields update leaves empty keep their value from base.
func Merge(base, update api.MagazineProperties) api.MagazineProperties {
	out := base
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(update)
	for i := 0; i < src.NumField(); i++ {
		if f := src.Field(i); !f.IsZero() {
			dst.Field(i).Set(f)
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}
