package hstruct

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/rawbytedev/hstruct/pkg/decode"
	"github.com/rawbytedev/hstruct/pkg/typegen"
)

var ErrOverflow = errors.New("value overflows destination")

// bindPlan maps record member names to struct field indexes.
type bindPlan struct {
	tags   map[string]int
	fields map[string]int
}

func (p *bindPlan) lookup(member string) (int, bool) {
	if i, ok := p.tags[member]; ok {
		return i, true
	}
	if i, ok := p.fields[member]; ok {
		return i, true
	}
	i, ok := p.fields[typegen.FieldName(member)]
	return i, ok
}

func newBindPlan(t reflect.Type) *bindPlan {
	plan := &bindPlan{tags: make(map[string]int), fields: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue // skip unexported
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if tag != "" {
			plan.tags[tag] = i
			continue
		}
		plan.fields[sf.Name] = i
	}
	return plan
}

func (r *Reader) getPlan(t reflect.Type) *bindPlan {
	r.mu.RLock()
	if plan, ok := r.plan[t]; ok {
		r.mu.RUnlock()
		return plan
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check
	if plan, ok := r.plan[t]; ok {
		return plan
	}
	plan := newBindPlan(t)
	r.plan[t] = plan
	return plan
}

type binder struct {
	planFor func(reflect.Type) *bindPlan
}

// Bind assigns a decoded record onto out, a non-nil pointer to a struct.
// Members match fields by json tag, then by Go field name; members
// without a matching field are ignored. On error out is left unchanged.
func Bind(v decode.Value, out any) error {
	return binder{planFor: newBindPlan}.bind(v, out)
}

func (r *Reader) bind(v decode.Value, out any) error {
	return binder{planFor: r.getPlan}.bind(v, out)
}

func (b binder) bind(v decode.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	if _, ok := v.(decode.Record); !ok {
		return fmt.Errorf("%w: %T onto struct", ErrUnsupported, v)
	}
	// Bind onto a copy so a failed bind leaves out untouched.
	dst := rv.Elem()
	tmp := reflect.New(dst.Type()).Elem()
	tmp.Set(dst)
	if err := b.set(tmp, v, dst.Type().Name()); err != nil {
		return err
	}
	dst.Set(tmp)
	return nil
}

func (b binder) set(dst reflect.Value, v decode.Value, path string) error {
	switch dst.Kind() {
	case reflect.Interface:
		if p := decode.Plain(v); p != nil && dst.NumMethod() == 0 {
			dst.Set(reflect.ValueOf(p))
			return nil
		}
	case reflect.Pointer:
		p := reflect.New(dst.Type().Elem())
		if !dst.IsNil() {
			p.Elem().Set(dst.Elem())
		}
		if err := b.set(p.Elem(), v, path); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch v := v.(type) {
	case decode.Int:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if dst.OverflowInt(v.V) {
				return overflow(path, v, dst)
			}
			dst.SetInt(v.V)
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if v.V < 0 || dst.OverflowUint(uint64(v.V)) {
				return overflow(path, v, dst)
			}
			dst.SetUint(uint64(v.V))
			return nil
		}
	case decode.Uint:
		switch dst.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if dst.OverflowUint(v.V) {
				return overflow(path, v, dst)
			}
			dst.SetUint(v.V)
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if v.V > math.MaxInt64 || dst.OverflowInt(int64(v.V)) {
				return overflow(path, v, dst)
			}
			dst.SetInt(int64(v.V))
			return nil
		}
	case decode.Text:
		switch {
		case dst.Kind() == reflect.String:
			dst.SetString(string(v))
			return nil
		case isByteSlice(dst.Type()):
			dst.SetBytes([]byte(v))
			return nil
		}
	case decode.Bytes:
		switch {
		case isByteSlice(dst.Type()):
			dst.SetBytes(append([]byte{}, v...))
			return nil
		case dst.Kind() == reflect.Array && dst.Type().Elem().Kind() == reflect.Uint8 && dst.Len() == len(v):
			reflect.Copy(dst, reflect.ValueOf([]byte(v)))
			return nil
		case dst.Kind() == reflect.String:
			dst.SetString(string(v))
			return nil
		}
	case decode.List:
		switch dst.Kind() {
		case reflect.Slice:
			s := reflect.MakeSlice(dst.Type(), len(v), len(v))
			if err := b.setList(s, v, path); err != nil {
				return err
			}
			dst.Set(s)
			return nil
		case reflect.Array:
			if dst.Len() == len(v) {
				return b.setList(dst, v, path)
			}
		}
	case decode.Record:
		if dst.Kind() == reflect.Struct {
			plan := b.planFor(dst.Type())
			for _, m := range v {
				i, ok := plan.lookup(m.Name)
				if !ok {
					continue
				}
				if err := b.set(dst.Field(i), m.Value, path+"."+m.Name); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s: %T into %s", ErrUnsupported, path, v, dst.Type())
}

func (b binder) setList(dst reflect.Value, v decode.List, path string) error {
	for i, e := range v {
		if err := b.set(dst.Index(i), e, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func overflow(path string, v decode.Value, dst reflect.Value) error {
	return fmt.Errorf("%w: %s: %v into %s", ErrOverflow, path, v, dst.Type())
}
