package airtable

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"testing"
)

func TestFieldsPreserveKeyOrderAndNumberLiterals(t *testing.T) {
	input := `{"Zeta":1.50,"Alpha":"a","Mid":[true,null,{"b":2,"a":1}],"Big":12345678901234567890}`

	var f Fields
	if err := json.Unmarshal([]byte(input), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if want := []string{"Zeta", "Alpha", "Mid", "Big"}; !slices.Equal(f.Names(), want) {
		t.Fatalf("expected names %v, got %v", want, f.Names())
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != input {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", input, out)
	}
}

func TestFieldsSetKeepsOriginalPosition(t *testing.T) {
	var f Fields
	f.Set("Name", String("first"))
	f.Set("Price", Int(10))
	f.Set("Name", String("second"))

	if want := []string{"Name", "Price"}; !slices.Equal(f.Names(), want) {
		t.Fatalf("expected names %v, got %v", want, f.Names())
	}
	v, ok := f.Get("Name")
	if !ok {
		t.Fatalf("expected Name to be present")
	}
	if s, _ := v.Str(); s != "second" {
		t.Fatalf("expected overwritten value, got %q", s)
	}

	if !f.Delete("Name") {
		t.Fatalf("expected Delete to report removal")
	}
	if f.Delete("Name") {
		t.Fatalf("expected second Delete to report absence")
	}
	if f.Len() != 1 {
		t.Fatalf("expected one field left, got %d", f.Len())
	}
}

func TestZeroFieldsMarshalsAsEmptyObject(t *testing.T) {
	var f Fields
	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "{}" {
		t.Fatalf("expected {}, got %s", out)
	}
}

func TestFieldsUnmarshalRejectsNonObject(t *testing.T) {
	var f Fields
	err := json.Unmarshal([]byte(`[1,2]`), &f)
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestDecodeFields(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "object", input: `{"Name":"Test"}`},
		{name: "empty object", input: `{}`},
		{name: "null", input: `null`, wantErr: true},
		{name: "string", input: `"Name"`, wantErr: true},
		{name: "array", input: `[{"Name":"Test"}]`, wantErr: true},
		{name: "malformed", input: `{"Name":`, wantErr: true},
		{name: "empty", input: ``, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFields([]byte(tc.input))
			if tc.wantErr {
				if !errors.Is(err, ErrNotObject) {
					t.Fatalf("expected ErrNotObject, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStringEscaping(t *testing.T) {
	cases := map[string]string{
		"newline and markup": "line\nbreak <tag> é",
		"vertical tab":       "a\u000bb",
		"start of heading":   "a\u0001b",
		"quote and delete":   "say \"hi\"\u007f",
		"backslash and tab":  `C:\temp` + "\tx",
		"line separator":     "a\u2028b\u2029c",
		"nul":                "\x00",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			var f Fields
			f.Set(`Quote "key"`, String(text))
			f.Set("Key\u0001"+text, Array(String(text)))

			out, err := json.Marshal(f)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var back map[string]any
			if err := json.Unmarshal(out, &back); err != nil {
				t.Fatalf("output is not valid JSON: %v (%s)", err, out)
			}
			if got := back[`Quote "key"`]; got != text {
				t.Fatalf("unexpected value after round trip: %q", got)
			}
			if got, _ := back["Key\u0001"+text].([]any); len(got) != 1 || got[0] != text {
				t.Fatalf("unexpected nested value after round trip: %v", back)
			}

			decoded, err := DecodeFields(out)
			if err != nil {
				t.Fatalf("DecodeFields: %v", err)
			}
			if !decoded.Equal(f) {
				t.Fatalf("fields changed after round trip: %s", out)
			}
		})
	}
}

func TestStringEscapingInvalidUTF8(t *testing.T) {
	out, err := json.Marshal(String("a\xffb"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"a\ufffdb"` {
		t.Fatalf("expected replacement character, got %s", out)
	}
}

func TestFieldsFromMap(t *testing.T) {
	f, err := FieldsFromMap(map[string]any{
		"Name":     "Test",
		"Rooms":    3,
		"Price":    1234.5,
		"Active":   true,
		"Tags":     []any{"a", "b"},
		"Address":  map[string]any{"City": "Warsaw"},
		"Optional": nil,
	})
	if err != nil {
		t.Fatalf("FieldsFromMap: %v", err)
	}

	if want := []string{"Active", "Address", "Name", "Optional", "Price", "Rooms", "Tags"}; !slices.Equal(f.Names(), want) {
		t.Fatalf("expected sorted names %v, got %v", want, f.Names())
	}

	rooms, _ := f.Get("Rooms")
	if n := rooms.Interface(); n != float64(3) {
		t.Fatalf("expected Rooms=3, got %v", rooms.Interface())
	}
	address, _ := f.Get("Address")
	nested, ok := address.Fields()
	if !ok {
		t.Fatalf("expected Address to be an object, got %s", address.Kind())
	}
	if city, _ := nested.Get("City"); city.Interface() != "Warsaw" {
		t.Fatalf("unexpected nested value %v", city.Interface())
	}

	if _, err := FieldsFromMap(map[string]any{"Bad": struct{}{}}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestValueEqual(t *testing.T) {
	a, _ := FieldsFromMap(map[string]any{"x": 1, "y": []any{"a", 2.0}})

	var b Fields
	b.Set("y", Array(String("a"), Float(2)))
	b.Set("x", Float(1.0))

	if !a.Equal(b) {
		t.Fatalf("expected fields to be equal regardless of order and number spelling")
	}

	b.Set("x", Int(2))
	if a.Equal(b) {
		t.Fatalf("expected differing values to compare unequal")
	}
	if String("1").Equal(Int(1)) {
		t.Fatalf("expected different kinds to compare unequal")
	}
}

func TestFloatRejectsNonFinite(t *testing.T) {
	if !Float(math.NaN()).IsNull() {
		t.Fatalf("expected NaN to become null")
	}
	if !Float(math.Inf(1)).IsNull() {
		t.Fatalf("expected +Inf to become null")
	}
}

func TestValueUnmarshal(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`[1,"two",false]`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Kind() != KindArray {
		t.Fatalf("expected array, got %s", v.Kind())
	}
	items, _ := v.Interface().([]any)
	if len(items) != 3 || items[0] != float64(1) || items[1] != "two" || items[2] != false {
		t.Fatalf("unexpected items %v", v.Interface())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var f Fields
	f.Set("Name", String("a"))

	clone := f.Clone()
	clone.Set("Name", String("b"))
	clone.Set("Extra", Null())

	if v, _ := f.Get("Name"); v.Interface() != "a" {
		t.Fatalf("original mutated through clone")
	}
	if f.Len() != 1 {
		t.Fatalf("expected original to keep one field, got %d", f.Len())
	}
}
