package cells

import "reflect"

// Attr derives an inherited cell reading the named member off this cell's
// value: a method, struct field, or map entry. A callable member is invoked
// with args (cell arguments are resolved at call time); anything else is
// returned directly. A missing member or an invalid parent value yields the
// Invalid sentinel rather than an error.
func (c *Cell) Attr(name string, args ...any) *Cell {
	return newInherited(c.rt, func() (any, error) {
		return member(c.Value(), name, args, false), nil
	})
}

// Func is Attr restricted to callable members: a member that cannot be
// invoked yields Invalid.
func (c *Cell) Func(name string, args ...any) *Cell {
	return newInherited(c.rt, func() (any, error) {
		return member(c.Value(), name, args, true), nil
	})
}

func member(v any, name string, args []any, mustCall bool) (out any) {
	// reflection mismatches (wrong arg types, bad map key kinds) degrade
	// to the invalid sentinel, same as a missing member
	defer func() {
		if recover() != nil {
			out = Invalid
		}
	}()

	if v == nil || v == Invalid {
		return Invalid
	}
	rv := reflect.ValueOf(v)

	if m := rv.MethodByName(name); m.IsValid() {
		return call(m, args)
	}
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
		if !rv.IsValid() {
			return Invalid
		}
		if m := rv.MethodByName(name); m.IsValid() {
			return call(m, args)
		}
	}

	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(name)
		if !f.IsValid() {
			return Invalid
		}
		if f.Kind() == reflect.Func && !f.IsNil() {
			return call(f, args)
		}
		if mustCall {
			return Invalid
		}
		return f.Interface()
	case reflect.Map:
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return Invalid
		}
		got := mv.Interface()
		if fv := reflect.ValueOf(got); fv.Kind() == reflect.Func && !fv.IsNil() {
			return call(fv, args)
		}
		if mustCall {
			return Invalid
		}
		return got
	}
	return Invalid
}

func call(fn reflect.Value, args []any) any {
	ft := fn.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		a = resolve(a)
		var av reflect.Value
		if a == nil {
			if i < ft.NumIn() {
				av = reflect.Zero(ft.In(i))
			} else {
				av = reflect.ValueOf(&a).Elem()
			}
		} else {
			av = reflect.ValueOf(a)
			if !ft.IsVariadic() && i < ft.NumIn() && av.Type() != ft.In(i) && av.Type().ConvertibleTo(ft.In(i)) {
				av = av.Convert(ft.In(i))
			}
		}
		in = append(in, av)
	}
	outs := fn.Call(in)
	if len(outs) == 0 {
		return nil
	}
	return outs[0].Interface()
}
