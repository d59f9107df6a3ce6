package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, Excellent},
		{85, Excellent},
		{84.9, Good},
		{70, Good},
		{69, Fair},
		{50, Fair},
		{49.5, Poor},
		{30, Poor},
		{29, Critical},
		{0, Critical},
		{-5, Critical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForScore(tt.score), "score %v", tt.score)
	}
}

func TestNormalizeStatus(t *testing.T) {
	s, ok := NormalizeStatus("Excellent")
	assert.True(t, ok)
	assert.Equal(t, Excellent, s)

	s, ok = NormalizeStatus("Sangat Buruk")
	assert.True(t, ok)
	assert.Equal(t, Critical, s)

	_, ok = NormalizeStatus("unknown")
	assert.False(t, ok)

	assert.Equal(t, TrendDown, TrendOf("buruk"))
	assert.Equal(t, TrendNeutral, TrendOf("Fair"))
	assert.Equal(t, TrendUp, TrendOf("good"))
	assert.Equal(t, TrendUnknown, TrendOf(""))
}

func TestParameterStatus(t *testing.T) {
	tests := []struct {
		param    string
		value    float64
		location string
		want     string
	}{
		{"ph", 7.0, "", ParamExcellent},
		{"ph", 6.2, "", ParamPoor},
		{"ph", 9.5, "", ParamVeryPoor},
		{"temperature", 25, "", ParamExcellent},
		{"temperature", 33, "", ParamGood},
		{"temperature", 36, "", ParamFair},
		{"temperature", 40, "", ParamPoor},
		{"tds", 400, Outlet, ParamExcellent},
		{"tds", 700, Outlet, ParamGood},
		{"tds", 900, Outlet, ParamFair},
		{"tds", 1100, Outlet, ParamPoor},
		{"tds", 1300, Outlet, ParamVeryPoor},
		{"tds", 1300, Inlet, ParamGood},
		{"turbidity", 5, Outlet, ParamExcellent},
		{"turbidity", 30, Outlet, ParamPoor},
		{"turbidity", 30, Inlet, ParamExcellent},
	}
	for _, tt := range tests {
		got, ok := ParameterStatus(tt.param, tt.value, tt.location)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "%s=%v at %q", tt.param, tt.value, tt.location)
	}

	_, ok := ParameterStatus("bod", 10, Outlet)
	assert.False(t, ok)
}
