package tracked

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"
)

// Snapshot is an opaque copy of the tracked field values of one entity.
type Snapshot = any

// Diffable lets an entity type capture and compare its own snapshot instead of
// relying on reflection. Diff reports whether the receiver differs from s.
type Diffable interface {
	Snapshot() Snapshot
	Diff(s Snapshot) bool
}

var (
	diffableType = reflect.TypeFor[Diffable]()
	timeType     = reflect.TypeFor[time.Time]()
)

// fieldSnapshot is the Snapshot produced for entity types without Diffable.
type fieldSnapshot struct {
	typ    reflect.Type
	values []reflect.Value
}

// trackedField is one persisted-relevant field of a struct type. index is
// the path through embedded structs, as for reflect.Value.FieldByIndex.
type trackedField struct {
	index []int
	typ   reflect.Type
	equal func(a, b reflect.Value) bool
}

// fieldPlan lists the tracked fields of a struct type.
type fieldPlan struct {
	typ    reflect.Type
	fields []trackedField
}

// snapshotter captures and diffs entity field values. Plans are built once
// per dynamic struct type and cached.
type snapshotter struct {
	plans map[reflect.Type]*fieldPlan
}

func newSnapshotter() *snapshotter {
	return &snapshotter{plans: make(map[reflect.Type]*fieldPlan)}
}

// checkTrackable rejects static types that can be neither diffed through
// Diffable nor through reflection. Interface types are checked per item.
func checkTrackable(t reflect.Type) error {
	if t.Kind() == reflect.Interface || t.Implements(diffableType) {
		return nil
	}
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s is neither Diffable nor a struct", ErrFieldAccess, t)
	}
	return nil
}

func (s *snapshotter) snapshot(item any) (Snapshot, error) {
	if d, ok := item.(Diffable); ok {
		return d.Snapshot(), nil
	}
	v, plan, err := s.resolve(item)
	if err != nil {
		return nil, err
	}
	values := make([]reflect.Value, len(plan.fields))
	for i, f := range plan.fields {
		fv := fieldValue(v, f.index)
		if !fv.IsValid() {
			continue
		}
		cp := reflect.New(f.typ).Elem()
		cp.Set(fv)
		values[i] = cp
	}
	return fieldSnapshot{typ: plan.typ, values: values}, nil
}

func (s *snapshotter) changed(item any, snap Snapshot) (bool, error) {
	if d, ok := item.(Diffable); ok {
		return d.Diff(snap), nil
	}
	v, plan, err := s.resolve(item)
	if err != nil {
		return false, err
	}
	fs, ok := snap.(fieldSnapshot)
	if !ok || fs.typ != plan.typ {
		return false, fmt.Errorf("%w: snapshot does not belong to %s", ErrFieldAccess, plan.typ)
	}
	for i, f := range plan.fields {
		cur, old := fieldValue(v, f.index), fs.values[i]
		if cur.IsValid() != old.IsValid() {
			return true, nil
		}
		if cur.IsValid() && !f.equal(cur, old) {
			return true, nil
		}
	}
	return false, nil
}

// fieldValue returns the field at index, or the zero Value when a nil
// embedded pointer lies on the path.
func fieldValue(v reflect.Value, index []int) reflect.Value {
	fv, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}
	}
	return fv
}

// resolve dereferences item to its struct value and returns the plan for it.
func (s *snapshotter) resolve(item any) (reflect.Value, *fieldPlan, error) {
	v := reflect.ValueOf(item)
	if !v.IsValid() {
		return reflect.Value{}, nil, fmt.Errorf("%w: nil entity", ErrFieldAccess)
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, nil, fmt.Errorf("%w: nil %s", ErrFieldAccess, v.Type())
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("%w: %s is not a struct", ErrFieldAccess, v.Type())
	}
	plan, ok := s.plans[v.Type()]
	if !ok {
		plan = buildPlan(v.Type())
		s.plans[v.Type()] = plan
	}
	return v, plan, nil
}

// buildPlan selects exported, non-navigation value fields. A field tagged
// `track:"-"` is skipped. The fields of an embedded struct pointer are
// tracked as if declared on t.
func buildPlan(t reflect.Type) *fieldPlan {
	plan := &fieldPlan{typ: t}
	plan.addFields(t, nil, map[reflect.Type]bool{t: true})
	return plan
}

func (p *fieldPlan) addFields(t reflect.Type, prefix []int, seen map[reflect.Type]bool) {
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("track") == "-" {
			continue
		}
		switch sf.Type.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			continue
		}
		index := append(slices.Clone(prefix), i)
		if sf.Anonymous && isNavigation(sf.Type) && sf.Type.Kind() == reflect.Pointer {
			if base := sf.Type.Elem(); !seen[base] {
				seen[base] = true
				p.addFields(base, index, seen)
				delete(seen, base)
			}
			continue
		}
		if isNavigation(sf.Type) {
			continue
		}
		p.fields = append(p.fields, trackedField{
			index: index,
			typ:   sf.Type,
			equal: equalFunc(sf.Type),
		})
	}
}

// isNavigation reports relationship fields: pointers to other entities and
// slices of them. *time.Time is a value, not a relationship.
func isNavigation(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct && t.Elem() != timeType
	case reflect.Slice, reflect.Array:
		e := t.Elem()
		return e.Kind() == reflect.Pointer && e.Elem().Kind() == reflect.Struct
	}
	return false
}

// equalFunc returns the value-equality test for fields of type t.
func equalFunc(t reflect.Type) func(a, b reflect.Value) bool {
	if hasEqualMethod(t) {
		return func(a, b reflect.Value) bool {
			return a.MethodByName("Equal").Call([]reflect.Value{b})[0].Bool()
		}
	}
	if t.Kind() == reflect.Pointer && hasEqualMethod(t.Elem()) {
		elem := equalFunc(t.Elem())
		return func(a, b reflect.Value) bool {
			if a.IsNil() || b.IsNil() {
				return a.IsNil() == b.IsNil()
			}
			return elem(a.Elem(), b.Elem())
		}
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Pointer,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) bool { return a.Equal(b) }
	case reflect.Float32, reflect.Float64:
		return func(a, b reflect.Value) bool { return sameFloat(a.Float(), b.Float()) }
	case reflect.Complex64, reflect.Complex128:
		return func(a, b reflect.Value) bool {
			x, y := a.Complex(), b.Complex()
			return sameFloat(real(x), real(y)) && sameFloat(imag(x), imag(y))
		}
	}
	return func(a, b reflect.Value) bool {
		return reflect.DeepEqual(a.Interface(), b.Interface())
	}
}

// sameFloat is == except that NaN equals NaN, so an untouched NaN field does
// not read as a change.
func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// hasEqualMethod reports whether t has a method Equal(t) bool.
func hasEqualMethod(t reflect.Type) bool {
	m, ok := t.MethodByName("Equal")
	if !ok {
		return false
	}
	mt := m.Type
	return mt.NumIn() == 2 && mt.In(1) == t && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.Bool
}
