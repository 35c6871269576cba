package v1

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	when := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		in       any
		wantKind ValueKind
		wantErr  bool
	}{
		{"string", "hello", ValueString, false},
		{"bool", true, ValueBool, false},
		{"int", 42, ValueNumber, false},
		{"uint64", uint64(7), ValueNumber, false},
		{"float", 1.5, ValueNumber, false},
		{"json number", json.Number("12.50"), ValueNumber, false},
		{"decimal", decimal.RequireFromString("3.14"), ValueNumber, false},
		{"date", when, ValueDate, false},
		{"string list", []string{"a", "b"}, ValueList, false},
		{"mixed list", []any{"a", 1}, ValueList, false},
		{"nil", nil, ValueInvalid, true},
		{"nested object", map[string]any{"a": 1}, ValueInvalid, true},
		{"NaN", math.NaN(), ValueInvalid, true},
		{"struct", struct{}{}, ValueInvalid, true},
		{"list with object", []any{map[string]any{}}, ValueInvalid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueOf(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind())
		})
	}
}

func TestValue_Interface(t *testing.T) {
	assert.Equal(t, int64(10), Int(10).Interface())
	assert.Equal(t, 2.5, Float(2.5).Interface())
	assert.Equal(t, "2026-03-01 08:30:00.125",
		Date(time.Date(2026, 3, 1, 8, 30, 0, 125_000_000, time.UTC)).Interface())
	assert.Equal(t, []any{"x", int64(1)}, List(String("x"), Int(1)).Interface())
	assert.Nil(t, Value{}.Interface())
}

func TestProperties_OrderAndUniqueness(t *testing.T) {
	p := NewProperties()
	p.Set("b", Int(1))
	p.Set("a", Int(2))
	p.Set("b", Int(3))

	require.Equal(t, []string{"b", "a"}, p.Keys())
	v, ok := p.Get("b")
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.True(t, n.Equal(decimal.NewFromInt(3)))

	require.True(t, p.Delete("b"))
	require.False(t, p.Delete("b"))
	assert.Equal(t, []string{"a"}, p.Keys())
}

func TestProperties_MergeSourceWins(t *testing.T) {
	base := NewProperties()
	base.Set("keep", String("base"))
	base.Set("shared", String("base"))

	top := NewProperties()
	top.Set("shared", String("top"))
	top.Set("extra", Bool(true))

	base.Merge(top)
	s, _ := base.GetString("shared")
	assert.Equal(t, "top", s)
	assert.Equal(t, []string{"keep", "shared", "extra"}, base.Keys())
}

func TestProperties_NilReceiver(t *testing.T) {
	var p *Properties
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Has("x"))
	assert.Nil(t, p.Keys())
	assert.Equal(t, 0, p.Clone().Len())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestProperties_JSONKeepsOrder(t *testing.T) {
	raw := `{"zeta":"z","alpha":1.25,"flag":false,"tags":["a","b"]}`

	var p Properties
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Equal(t, []string{"zeta", "alpha", "flag", "tags"}, p.Keys())

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	assert.Equal(t, raw, string(out))
}

func TestProperties_UnmarshalRejectsNested(t *testing.T) {
	var p Properties
	err := json.Unmarshal([]byte(`{"a":{"b":1}}`), &p)
	require.ErrorIs(t, err, ErrUnsupportedValue)

	err = json.Unmarshal([]byte(`["not","object"]`), &p)
	require.Error(t, err)
}

func TestPropertiesFrom(t *testing.T) {
	p, err := PropertiesFrom(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Keys())

	_, err = PropertiesFrom(map[string]any{"bad": []int{1}})
	require.ErrorIs(t, err, ErrUnsupportedValue)
}
