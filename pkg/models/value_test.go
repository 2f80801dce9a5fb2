package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnyFoldsDriverTypes(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   interface{}
		kind Kind
		text string
	}{
		{"nil", nil, KindNull, ""},
		{"string", "abc", KindString, "abc"},
		{"bytes", []byte("xyz"), KindString, "xyz"},
		{"int64", int64(42), KindNumber, "42"},
		{"float", 3.5, KindNumber, "3.5"},
		{"bool", true, KindBool, "true"},
		{"time", now, KindDate, now.Format(time.RFC3339)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := FromAny(tc.in)
			assert.Equal(t, tc.kind, v.Kind())
			assert.Equal(t, tc.text, v.Text())
		})
	}
}

func TestValueAccessors(t *testing.T) {
	f, ok := NumberValue(1.25).Float()
	require.True(t, ok)
	assert.Equal(t, 1.25, f)

	_, ok = StringValue("1.25").Float()
	assert.False(t, ok)

	assert.True(t, Null().IsNull())
	assert.Nil(t, Null().Interface())
	assert.Equal(t, "hello", StringValue("hello").Interface())
}

func TestRowClone(t *testing.T) {
	row := Row{"a": NumberValue(1)}
	clone := row.Clone()
	clone["a"] = NumberValue(2)

	original, _ := row["a"].Float()
	assert.Equal(t, 1.0, original)
}
