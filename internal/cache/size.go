package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// fallbackFactor inflates the coerced length of values that cannot be
// serialized, since their encoded size is unknown.
const fallbackFactor = 2

// maxCoerceDepth bounds the reflective walk over unserializable values.
const maxCoerceDepth = 32

var ErrUnsizable = errors.New("cache: value size cannot be estimated")

// EstimateSize approximates the memory held by value as the length of its JSON
// encoding. Values that do not encode (functions, channels, cycles) fall back
// to a rough character count multiplied by fallbackFactor. Only a panic during
// the fallback produces an error.
func EstimateSize(value any) (int64, error) {
	if b, err := json.Marshal(value); err == nil {
		return int64(len(b)), nil
	}
	n, err := coercedLen(value)
	if err != nil {
		return 0, err
	}
	return int64(n) * fallbackFactor, nil
}

func (s *Store) estimate(value any) (size int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			size, err = 0, fmt.Errorf("%w: %v", ErrUnsizable, r)
		}
	}()
	size, err = s.sizeOf(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsizable, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrUnsizable, size)
	}
	return size, nil
}

func coercedLen(value any) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrUnsizable, r)
		}
	}()
	w := walker{seen: make(map[uintptr]bool)}
	return w.length(reflect.ValueOf(value), 0), nil
}

// walker approximates the printed length of a value. Pointers, maps and
// slices are visited once, so cyclic values terminate.
type walker struct {
	seen map[uintptr]bool
}

func (w walker) length(v reflect.Value, depth int) int {
	if !v.IsValid() {
		return len("<nil>")
	}
	if depth > maxCoerceDepth {
		return len("...")
	}

	switch v.Kind() {
	case reflect.String:
		return v.Len()
	case reflect.Bool:
		return len(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return len(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return len(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return len(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		return len(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return len("<nil>")
		}
		return len(fmt.Sprintf("%#x", v.Pointer()))
	case reflect.Interface:
		if v.IsNil() {
			return len("<nil>")
		}
		return w.length(v.Elem(), depth+1)
	case reflect.Pointer:
		if v.IsNil() {
			return len("<nil>")
		}
		if w.visit(v.Pointer()) {
			return len("0xc000000000")
		}
		return 1 + w.length(v.Elem(), depth+1)
	case reflect.Map:
		if v.IsNil() {
			return len("map[]")
		}
		if w.visit(v.Pointer()) {
			return len("map[...]")
		}
		n := len("map[]")
		iter := v.MapRange()
		for iter.Next() {
			n += w.length(iter.Key(), depth+1) + 1 + w.length(iter.Value(), depth+1) + 1
		}
		return n
	case reflect.Slice:
		if v.IsNil() {
			return len("[]")
		}
		if v.Len() > 0 && w.visit(v.Pointer()) {
			return len("[...]")
		}
		fallthrough
	case reflect.Array:
		n := len("[]")
		for i := 0; i < v.Len(); i++ {
			n += w.length(v.Index(i), depth+1) + 1
		}
		return n
	case reflect.Struct:
		n := len("{}")
		for i := 0; i < v.NumField(); i++ {
			n += w.length(v.Field(i), depth+1) + 1
		}
		return n
	default:
		return len(v.Type().String())
	}
}

func (w walker) visit(p uintptr) bool {
	if w.seen[p] {
		return true
	}
	w.seen[p] = true
	return false
}
