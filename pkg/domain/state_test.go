package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"blank string", "   ", false},
		{"string false", "FALSE", false},
		{"string zero", "0", false},
		{"url", "https://example.com", true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"nan", math.NaN(), false},
		{"json number", json.Number("1.5"), true},
		{"json zero", json.Number("0"), false},
		{"object", map[string]any{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Truthy(tt.in))
		})
	}
}

func TestNumber(t *testing.T) {
	n, ok := domain.Number(int64(42))
	assert.True(t, ok)
	assert.Equal(t, 42.0, n)

	n, ok = domain.Number(json.Number("12.5"))
	assert.True(t, ok)
	assert.Equal(t, 12.5, n)

	_, ok = domain.Number("12")
	assert.False(t, ok, "strings are never numeric")

	_, ok = domain.Number(math.NaN())
	assert.False(t, ok)

	_, ok = domain.Number(nil)
	assert.False(t, ok)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, json.Number("500"), domain.ParseValue("500"))
	assert.Equal(t, true, domain.ParseValue("true"))
	assert.Nil(t, domain.ParseValue("null"))
	assert.Equal(t, "quoted", domain.ParseValue(`"quoted"`))
	assert.Equal(t, map[string]any{"a": json.Number("1")}, domain.ParseValue(`{"a":1}`))
	assert.Equal(t, "https://example.com", domain.ParseValue("https://example.com"))
	assert.Equal(t, "1 2", domain.ParseValue("1 2"))
	assert.Equal(t, "", domain.ParseValue(""))
}

func TestNewState(t *testing.T) {
	s := domain.NewState("x", true)
	assert.Equal(t, "x", s.Val)
	assert.True(t, s.Ack)
	assert.False(t, s.Ts.IsZero())
}
