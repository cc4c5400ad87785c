package tracked

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// KeyFunc reads the primary key of an entity.
type KeyFunc[T any] func(item T) (any, error)

var durationType = reflect.TypeFor[time.Duration]()

// FieldAccessor reads and writes one exported field of T by name. The field
// is resolved on first use against the dynamic type of the item and cached;
// a name that does not exist on that type yields ErrFieldAccess.
type FieldAccessor[T any] struct {
	name  string
	typ   reflect.Type
	index []int
}

// Field returns an accessor for the named field of T.
func Field[T any](name string) *FieldAccessor[T] {
	return &FieldAccessor[T]{name: name}
}

// Name returns the field name.
func (a *FieldAccessor[T]) Name() string { return a.name }

// Get returns the current value of the field.
func (a *FieldAccessor[T]) Get(item T) (any, error) {
	f, err := a.field(item, false)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// Set assigns value to the field. Values that are not directly assignable
// are converted to the field's kind, so "3" can be written to an int field
// and an RFC 3339 string to a time.Time.
func (a *FieldAccessor[T]) Set(item T, value any) error {
	f, err := a.field(item, true)
	if err != nil {
		return err
	}
	v, err := coerce(value, f.Type())
	if err != nil {
		return fmt.Errorf("%w: setting %s: %v", ErrFieldAccess, a.name, err)
	}
	f.Set(v)
	return nil
}

// Key adapts the accessor to a KeyFunc.
func (a *FieldAccessor[T]) Key() KeyFunc[T] {
	return a.Get
}

func (a *FieldAccessor[T]) field(item T, settable bool) (reflect.Value, error) {
	v := reflect.ValueOf(any(item))
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: nil entity reading %s", ErrFieldAccess, a.name)
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s reading %s", ErrFieldAccess, v.Type(), a.name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s is not a struct", ErrFieldAccess, v.Type())
	}
	if a.typ != v.Type() {
		sf, ok := v.Type().FieldByName(a.name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, fmt.Errorf("%w: %s has no exported field %q", ErrFieldAccess, v.Type(), a.name)
		}
		a.typ, a.index = v.Type(), sf.Index
	}
	f, err := v.FieldByIndexErr(a.index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrFieldAccess, err)
	}
	if settable && !f.CanSet() {
		return reflect.Value{}, fmt.Errorf("%w: field %q of %s is not settable", ErrFieldAccess, a.name, a.typ)
	}
	return f, nil
}

// coerce converts value to type t.
func coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	if v := reflect.ValueOf(value); v.Type().AssignableTo(t) {
		return v, nil
	}

	var (
		out any
		err error
	)
	switch {
	case t == timeType:
		out, err = cast.ToTimeE(value)
	case t.Kind() == reflect.Pointer && t.Elem() == timeType:
		var tm time.Time
		tm, err = cast.ToTimeE(value)
		out = &tm
	case t == durationType:
		out, err = cast.ToDurationE(value)
	default:
		out, err = coerceKind(value, t)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	rv := reflect.ValueOf(out)
	if !rv.Type().ConvertibleTo(t) {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", value, t)
	}
	return rv.Convert(t), nil
}

func coerceKind(value any, t reflect.Type) (any, error) {
	switch t.Kind() {
	case reflect.String:
		return cast.ToStringE(value)
	case reflect.Bool:
		return cast.ToBoolE(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := cast.ToInt64E(value)
		if err != nil {
			return nil, err
		}
		if reflect.Zero(t).OverflowInt(i) {
			return nil, fmt.Errorf("%d overflows %s", i, t)
		}
		return i, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := cast.ToUint64E(value)
		if err != nil {
			return nil, err
		}
		if reflect.Zero(t).OverflowUint(u) {
			return nil, fmt.Errorf("%d overflows %s", u, t)
		}
		return u, nil
	case reflect.Float32, reflect.Float64:
		return cast.ToFloat64E(value)
	case reflect.Map:
		if t.Key().Kind() == reflect.String && t.Elem().Kind() == reflect.Interface {
			return cast.ToStringMapE(value)
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return cast.ToStringSliceE(value)
		}
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}
