package airtable

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single cell value. The zero Value is null.
// Numbers keep the literal text they were decoded from.
type Value struct {
	kind   Kind
	text   string
	truth  bool
	items  []Value
	object Fields
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, truth: b} }

// Int returns a number value holding n.
func Int(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// Float returns a number value holding f. NaN and infinities have no JSON
// representation and become null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Array returns an array value holding items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: slices.Clone(items)}
}

// Object returns a nested object value.
func Object(f Fields) Value {
	return Value{kind: KindObject, object: f.Clone()}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.truth, true
}

// Fields returns the nested object held by v.
func (v Value) Fields() (Fields, bool) {
	if v.kind != KindObject {
		return Fields{}, false
	}
	return v.object.Clone(), true
}

// Interface converts v into plain Go values: nil, string, float64, bool,
// []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		f, _ := v.number()
		return f
	case KindBool:
		return v.truth
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.object.Map()
	default:
		return nil
	}
}

// Equal reports whether v and other hold the same value. Numbers compare
// numerically and objects ignore key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.text == other.text
	case KindNumber:
		if v.text == other.text {
			return true
		}
		a, okA := v.number()
		b, okB := other.number()
		return okA && okB && a == b
	case KindBool:
		return v.truth == other.truth
	case KindArray:
		return slices.EqualFunc(v.items, other.items, Value.Equal)
	case KindObject:
		return v.object.Equal(other.object)
	}
	return false
}

func (v Value) number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	p := parserPool.Get()
	defer parserPool.Put(p)

	parsed, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	out, err := valueFromJSON(parsed)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (v Value) appendJSON(dst []byte) []byte {
	switch v.kind {
	case KindString:
		return appendString(dst, v.text)
	case KindNumber:
		return append(dst, v.text...)
	case KindBool:
		return strconv.AppendBool(dst, v.truth)
	case KindArray:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.appendJSON(dst)
		}
		return append(dst, ']')
	case KindObject:
		return v.object.appendJSON(dst)
	default:
		return append(dst, "null"...)
	}
}

func valueFromJSON(v *fastjson.Value) (Value, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return Null(), nil
	case fastjson.TypeTrue:
		return Bool(true), nil
	case fastjson.TypeFalse:
		return Bool(false), nil
	case fastjson.TypeString:
		b, err := v.StringBytes()
		if err != nil {
			return Value{}, err
		}
		return String(string(b)), nil
	case fastjson.TypeNumber:
		return Value{kind: KindNumber, text: v.String()}, nil
	case fastjson.TypeArray:
		raw, err := v.Array()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, len(raw))
		for _, item := range raw {
			converted, err := valueFromJSON(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, converted)
		}
		return Value{kind: KindArray, items: items}, nil
	case fastjson.TypeObject:
		f, err := fieldsFromJSON(v)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, object: f}, nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %s", v.Type())
	}
}

// Fields is an ordered field-name to Value mapping. The zero Fields is empty
// and ready to use. Setting an existing name keeps its original position.
type Fields struct {
	names  []string
	values map[string]Value
}

// FieldsFromMap converts plain Go values into Fields. Keys are sorted so the
// result is deterministic.
func FieldsFromMap(m map[string]any) (Fields, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var f Fields
	for _, name := range names {
		v, err := ValueOf(m[name])
		if err != nil {
			return Fields{}, fmt.Errorf("field %q: %w", name, err)
		}
		f.Set(name, v)
	}
	return f, nil
}

// ValueOf converts a plain Go value into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindArray, items: items}, nil
	case []string:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, String(item))
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		f, err := FieldsFromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, object: f}, nil
	case Fields:
		return Object(t), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// DecodeFields parses a JSON document that must be an object.
func DecodeFields(data []byte) (Fields, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	parsed, err := p.ParseBytes(data)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if parsed.Type() != fastjson.TypeObject {
		return Fields{}, ErrNotObject
	}
	return fieldsFromJSON(parsed)
}

// Set assigns v to name.
func (f *Fields) Set(name string, v Value) {
	if f.values == nil {
		f.values = make(map[string]Value)
	}
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = v
}

// Get returns the value stored under name.
func (f Fields) Get(name string) (Value, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Delete removes name. It reports whether the name was present.
func (f *Fields) Delete(name string) bool {
	if _, ok := f.values[name]; !ok {
		return false
	}
	delete(f.values, name)
	f.names = slices.DeleteFunc(f.names, func(n string) bool { return n == name })
	return true
}

// Len returns the number of fields.
func (f Fields) Len() int { return len(f.names) }

// Names returns the field names in order.
func (f Fields) Names() []string { return slices.Clone(f.names) }

// All iterates fields in order.
func (f Fields) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, name := range f.names {
			if !yield(name, f.values[name]) {
				return
			}
		}
	}
}

// Clone returns a copy of f that shares no mutable state with it.
func (f Fields) Clone() Fields {
	var out Fields
	for name, v := range f.All() {
		out.Set(name, v)
	}
	return out
}

// Map converts f into a plain map.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f.names))
	for name, v := range f.All() {
		out[name] = v.Interface()
	}
	return out
}

// Equal reports whether f and other hold the same names and values,
// regardless of order.
func (f Fields) Equal(other Fields) bool {
	if f.Len() != other.Len() {
		return false
	}
	for name, v := range f.All() {
		ov, ok := other.values[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler. Names are written in order.
func (f Fields) MarshalJSON() ([]byte, error) {
	return f.appendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves f untouched.
func (f *Fields) UnmarshalJSON(data []byte) error {
	p := parserPool.Get()
	defer parserPool.Put(p)

	parsed, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse fields: %w", err)
	}
	switch parsed.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeObject:
	default:
		return ErrNotObject
	}

	out, err := fieldsFromJSON(parsed)
	if err != nil {
		return err
	}
	*f = out
	return nil
}

func (f Fields) appendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	for i, name := range f.names {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendString(dst, name)
		dst = append(dst, ':')
		dst = f.values[name].appendJSON(dst)
	}
	return append(dst, '}')
}

const hexDigits = "0123456789abcdef"

// appendString appends s as a quoted JSON string. Control characters use
// \u escapes and invalid UTF-8 becomes U+FFFD.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			if b >= 0x20 && b != '"' && b != '\\' {
				i++
				continue
			}
			dst = append(dst, s[start:i]...)
			switch b {
			case '"', '\\':
				dst = append(dst, '\\', b)
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			default:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xf])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, s[start:i]...)
			dst = append(dst, `\ufffd`...)
			i += size
			start = i
			continue
		}
		if r == '\u2028' || r == '\u2029' {
			dst = append(dst, s[start:i]...)
			dst = append(dst, '\\', 'u', '2', '0', '2', hexDigits[r&0xf])
			i += size
			start = i
			continue
		}
		i += size
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

func fieldsFromJSON(v *fastjson.Value) (Fields, error) {
	obj, err := v.Object()
	if err != nil {
		return Fields{}, ErrNotObject
	}

	var (
		out     Fields
		convErr error
	)
	obj.Visit(func(key []byte, item *fastjson.Value) {
		if convErr != nil {
			return
		}
		converted, err := valueFromJSON(item)
		if err != nil {
			convErr = fmt.Errorf("field %q: %w", key, err)
			return
		}
		out.Set(string(key), converted)
	})
	if convErr != nil {
		return Fields{}, convErr
	}
	return out, nil
}
