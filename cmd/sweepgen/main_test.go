package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/sweepwatch/internal/sweep"
)

func TestParseCarriers(t *testing.T) {
	got, err := parseCarriers([]string{"2437000000:-30", "915000000:-42.5"})
	require.NoError(t, err)
	assert.Equal(t, []sweep.Carrier{
		{FrequencyHz: 2_437_000_000, PowerDB: -30},
		{FrequencyHz: 915_000_000, PowerDB: -42.5},
	}, got)

	for _, bad := range []string{"2437000000", "abc:-30", "100:loud"} {
		_, err := parseCarriers([]string{bad})
		assert.Error(t, err, bad)
	}
}
