package types

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

var (
	valueType  = reflect.TypeOf(Value{})
	timeType   = reflect.TypeOf(time.Time{})
	vectorType = reflect.TypeOf(Vector(nil))
)

// Encode converts a native Go value to its wire value.
//
// Booleans become integers 1/0, time.Time becomes unix seconds and Vector
// becomes a packed blob. Nil pointers and untyped nil become Null.
func Encode(x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	switch t := x.(type) {
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case time.Time:
		return Integer(t.Unix()), nil
	case Vector:
		if t == nil {
			return Null(), nil
		}
		return Blob(t.Bytes()), nil
	case []byte:
		if t == nil {
			return Null(), nil
		}
		return Blob(t), nil
	}
	return encodeReflect(reflect.ValueOf(x))
}

// EncodeAll encodes each argument in order.
func EncodeAll(args ...any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := Encode(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func encodeReflect(rv reflect.Value) (Value, error) {
	switch rv.Type() {
	case valueType:
		return rv.Interface().(Value), nil
	case timeType:
		return Integer(rv.Interface().(time.Time).Unix()), nil
	case vectorType:
		if rv.IsNil() {
			return Null(), nil
		}
		return Blob(rv.Interface().(Vector).Bytes()), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return encodeReflect(rv.Elem())
	case reflect.Bool:
		if rv.Bool() {
			return Integer(1), nil
		}
		return Integer(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows a signed 64-bit integer", ErrInvalidValue, u)
		}
		return Integer(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return Null(), nil
			}
			return Blob(rv.Bytes()), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

// Decode stores v into dst, which must be settable. decl is the declared
// type of the source column; it selects the vector dimension check and may
// be empty.
//
// Null sets the zero value. Pointer destinations are allocated for non-null
// values and set to nil for Null.
func Decode(v Value, decl DeclType, dst reflect.Value) error {
	if !dst.CanSet() {
		return fmt.Errorf("%w: destination %s is not settable", ErrTypeMismatch, dst.Type())
	}
	if dst.Type() == valueType {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		if v.IsNull() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := Decode(v, decl, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	switch v.kind {
	case KindNull:
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	case KindInteger:
		return decodeInteger(v, dst)
	case KindFloat:
		return decodeFloat(v, dst)
	case KindText:
		return decodeText(v, dst)
	case KindBlob:
		return decodeBlob(v, decl, dst)
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidValue, v.kind)
	}
}

// DecodeAs decodes v into a fresh T.
func DecodeAs[T any](v Value, decl DeclType) (T, error) {
	var out T
	err := Decode(v, decl, reflect.ValueOf(&out).Elem())
	return out, err
}

func mismatch(v Value, dst reflect.Value) error {
	return fmt.Errorf("%w: cannot store %s in %s", ErrTypeMismatch, v.kind, dst.Type())
}

func decodeInteger(v Value, dst reflect.Value) error {
	if dst.Type() == timeType {
		n, err := v.Int64()
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(time.Unix(n, 0).UTC()))
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
	default:
		return mismatch(v, dst)
	}

	n, err := v.Int64()
	if err != nil {
		return err
	}
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(n != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dst.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrInvalidValue, n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(float64(n))
	default:
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrInvalidValue, n, dst.Type())
		}
		dst.SetUint(uint64(n))
	}
	return nil
}

func decodeFloat(v Value, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.Float64:
		dst.SetFloat(v.num)
	case reflect.Float32:
		if dst.OverflowFloat(v.num) {
			return fmt.Errorf("%w: %g overflows %s", ErrInvalidValue, v.num, dst.Type())
		}
		dst.SetFloat(v.num)
	default:
		return mismatch(v, dst)
	}
	return nil
}

func decodeText(v Value, dst reflect.Value) error {
	switch {
	case dst.Kind() == reflect.String:
		dst.SetString(v.text)
	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
		dst.SetBytes([]byte(v.text))
	default:
		return mismatch(v, dst)
	}
	return nil
}

func decodeBlob(v Value, decl DeclType, dst reflect.Value) error {
	isVector := dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Float32
	isBytes := dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8
	if !isVector && !isBytes {
		return mismatch(v, dst)
	}

	b, err := v.AsBytes()
	if err != nil {
		return err
	}
	if isBytes {
		dst.SetBytes(b)
		return nil
	}

	if dims, ok := decl.VectorDims(); ok && len(b) != dims*4 {
		return fmt.Errorf("%w: %s expects %d bytes, got %d", ErrVectorSize, decl, dims*4, len(b))
	}
	vec, err := VectorFromBytes(b)
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(vec).Convert(dst.Type()))
	return nil
}

// DeclFor returns the declared column type used for a Go type, or DeclNone
// when the type has no column mapping. Pointers map to their element type.
func DeclFor(t reflect.Type) DeclType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return DeclInteger
	case vectorType:
		return vectorPrefix
	case valueType:
		return DeclNone
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return DeclInteger
	case reflect.Float32, reflect.Float64:
		return DeclReal
	case reflect.String:
		return DeclText
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return DeclBlob
		}
	}
	return DeclNone
}

// Supported reports whether values of t can be encoded and decoded.
func Supported(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == valueType || DeclFor(t) != DeclNone
}
