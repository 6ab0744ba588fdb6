package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPower_JSON(t *testing.T) {
	data, err := json.Marshal([]Power{-12.5, Power(math.Inf(-1)), Power(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `[-12.5, null, null]`, string(data))

	var back []Power
	require.NoError(t, json.Unmarshal([]byte(`[-12.5, null]`), &back))
	require.Len(t, back, 2)
	assert.Equal(t, Power(-12.5), back[0])
	assert.True(t, math.IsInf(float64(back[1]), -1))
}

func TestObservable(t *testing.T) {
	assert.True(t, Observable(-90))
	assert.True(t, Observable(math.Inf(-1)))
	assert.False(t, Observable(math.Inf(1)))
	assert.False(t, Observable(math.NaN()))
}

func TestBinRecord_ObserveIgnoresNaN(t *testing.T) {
	b := NewBinRecord(-50, 1)
	b.Observe(math.NaN(), 2)
	b.Observe(math.Inf(1), 3)
	assert.Equal(t, BinRecord{Last: -50, Min: -50, Max: -50, Timestamp: 1}, b)

	b.Observe(math.Inf(-1), 4)
	assert.Equal(t, BinRecord{Last: math.Inf(-1), Min: math.Inf(-1), Max: -50, Timestamp: 4}, b)
}
