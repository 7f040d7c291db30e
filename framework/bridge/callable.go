package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	contextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

// signature describes a func type the bridge can call or imitate.
//
// Supported shapes, with an optional leading context.Context:
//
//	func(args...)
//	func(args...) R
//	func(args...) error
//	func(args...) (R, error)
type signature struct {
	typ        reflect.Type
	takesCtx   bool
	params     []reflect.Type // excluding ctx; the variadic slice type last
	result     reflect.Type   // nil when there is no value result
	returnsErr bool
}

func signatureOf(t reflect.Type) (*signature, error) {
	if t == nil {
		return nil, fmt.Errorf("nil is not a func")
	}
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a func", t)
	}

	s := &signature{typ: t}
	start := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		s.takesCtx = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		s.params = append(s.params, t.In(i))
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			s.returnsErr = true
		} else {
			s.result = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%s: second result must be error", t)
		}
		s.result = t.Out(0)
		s.returnsErr = true
	default:
		return nil, fmt.Errorf("%s: too many results", t)
	}
	return s, nil
}

// paramType returns the type expected for the i-th forwarded argument.
func (s *signature) paramType(i int) reflect.Type {
	last := len(s.params) - 1
	if s.typ.IsVariadic() && i >= last {
		return s.params[last].Elem()
	}
	return s.params[i]
}

// bindArgs converts forwarded arguments into call values.
func (s *signature) bindArgs(key string, args []any) ([]reflect.Value, error) {
	if s.typ.IsVariadic() {
		if atLeast := len(s.params) - 1; len(args) < atLeast {
			return nil, &ArgumentError{Key: key, Index: -1,
				Reason: fmt.Sprintf("expected at least %d argument(s), got %d", atLeast, len(args))}
		}
	} else if len(args) != len(s.params) {
		return nil, &ArgumentError{Key: key, Index: -1,
			Reason: fmt.Sprintf("expected %d argument(s), got %d", len(s.params), len(args))}
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := coerce(arg, s.paramType(i))
		if err != nil {
			return nil, &ArgumentError{Key: key, Index: i, Reason: err.Error()}
		}
		in[i] = v
	}
	return in, nil
}

// flatten turns MakeFunc input values (ctx already stripped) into forwarded
// arguments, expanding the variadic slice.
func (s *signature) flatten(in []reflect.Value) []any {
	args := make([]any, 0, len(in))
	for i, v := range in {
		if s.typ.IsVariadic() && i == len(in)-1 {
			for j := 0; j < v.Len(); j++ {
				args = append(args, v.Index(j).Interface())
			}
			continue
		}
		args = append(args, v.Interface())
	}
	return args
}

// outcome splits call results into (value, error) without transforming them.
func (s *signature) outcome(out []reflect.Value) (any, error) {
	var (
		result any
		err    error
	)
	if s.result != nil {
		result = out[0].Interface()
	}
	if s.returnsErr {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	return result, err
}

// fail builds MakeFunc results reporting err. Signatures without an error
// result have no way to report it and panic instead.
func (s *signature) fail(err error) []reflect.Value {
	if !s.returnsErr {
		panic(err)
	}
	out := make([]reflect.Value, 0, 2)
	if s.result != nil {
		out = append(out, reflect.Zero(s.result))
	}
	return append(out, reflect.ValueOf(&err).Elem())
}

// succeed builds MakeFunc results from a dispatched value.
func (s *signature) succeed(key string, res any) []reflect.Value {
	out := make([]reflect.Value, 0, 2)
	if s.result != nil {
		v, err := coerce(res, s.result)
		if err != nil {
			return s.fail(&ResultError{Key: key, Reason: err.Error()})
		}
		out = append(out, v)
	}
	if s.returnsErr {
		out = append(out, reflect.Zero(errorType))
	}
	return out
}

// coerce returns a value of exactly type t built from v. json.RawMessage is
// decoded, assignable values are copied, and numeric values are converted
// when the conversion is lossless.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		if nilable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}

	if raw, ok := v.(json.RawMessage); ok && t != rawMessageType {
		ptr := reflect.New(t)
		if len(raw) == 0 {
			return ptr.Elem(), nil
		}
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("decode %s: %w", t, err)
		}
		return ptr.Elem(), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if numeric(rv.Kind()) && numeric(t.Kind()) {
		conv := rv.Convert(t)
		if negative(conv) == negative(rv) && conv.Convert(rv.Type()).Interface() == rv.Interface() {
			return conv, nil
		}
		return reflect.Value{}, fmt.Errorf("%v does not fit in %s", v, t)
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// negative reports whether a numeric value is below zero. Comparing signs
// before and after a conversion catches two's-complement wraparound, which
// survives a round trip.
func negative(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() < 0
	case reflect.Float32, reflect.Float64:
		return v.Float() < 0
	}
	return false
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
