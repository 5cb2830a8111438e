package canonical

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// checkValue walks v the way encoding/json will, rejecting what json.Marshal would
// otherwise change silently: strings and map keys that are not valid UTF-8 (replaced
// with U+FFFD) and floats (which only survive when they happen to be whole numbers).
// Types with their own JSON or text marshaling are not descended into; their output is
// checked after serialization.
func checkValue(v any) error {
	c := checker{seen: make(map[visit]bool)}
	return c.check(reflect.ValueOf(v), "")
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type checker struct {
	seen map[visit]bool
}

func (c *checker) check(v reflect.Value, path string) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		return nil
	}
	if v.CanAddr() && (reflect.PointerTo(t).Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)) {
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: invalid UTF-8 in string at %q", ErrUnsupportedValue, path)
		}
	case reflect.Float32, reflect.Float64:
		return fmt.Errorf("%w: float at %q", ErrUnsupportedValue, path)
	case reflect.Interface:
		return c.check(v.Elem(), path)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		// revisits are left to json.Marshal, which reports cycles itself
		if !c.enter(v, 0) {
			return nil
		}
		return c.check(v.Elem(), path)
	case reflect.Map:
		if v.IsNil() || !c.enter(v, 0) {
			return nil
		}
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.String && !utf8.ValidString(k.String()) {
				return fmt.Errorf("%w: invalid UTF-8 in map key under %q", ErrUnsupportedValue, path)
			}
			if err := c.check(iter.Value(), fmt.Sprintf("%s/%v", path, k)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		if v.IsNil() || t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		if !c.enter(v, v.Len()) {
			return nil
		}
		return c.checkElems(v, path)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return c.checkElems(v, path)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			tag := f.Tag.Get("json")
			if tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")
			if name == "" {
				name = f.Name
			}
			if strings.Contains(opts, "string") {
				// quoted scalars are strings on the wire
				continue
			}
			if err := c.check(v.Field(i), path+"/"+name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *checker) checkElems(v reflect.Value, path string) error {
	for i := 0; i < v.Len(); i++ {
		if err := c.check(v.Index(i), fmt.Sprintf("%s/%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) enter(v reflect.Value, n int) bool {
	key := visit{ptr: v.Pointer(), typ: v.Type(), n: n}
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	return true
}
