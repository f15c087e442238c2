package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringArray(t *testing.T) {
	out, err := parseStringArray(`["111","222"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, out)

	out, err = parseStringArray("  ")
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = parseStringArray(`{"not":"an array"}`)
	require.Error(t, err)
}

func TestParseFloatArray(t *testing.T) {
	out, err := parseFloatArray(`["0.62","0.38"]`)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.62, 0.38}, out)

	_, err = parseFloatArray(`["0.62","n/a"]`)
	require.Error(t, err)
}

func TestFlexBoolDecodesBothSpellings(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"TRUE"`, true},
		{`"1"`, true},
		{`"false"`, false},
		{`"no"`, false},
	}
	for _, tt := range tests {
		var f flexBool
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &f), tt.raw)
		assert.Equal(t, tt.want, bool(f), tt.raw)
	}

	var f flexBool
	require.Error(t, json.Unmarshal([]byte(`42`), &f))
}

func TestAPIMarketDecodesGammaRow(t *testing.T) {
	raw := `{
		"id": "500123",
		"question": "Will it rain tomorrow?",
		"conditionId": "0xcond1",
		"slug": "will-it-rain",
		"active": "false",
		"closed": true,
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"1\",\"0\"]",
		"clobTokenIds": "[\"111\",\"222\"]"
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "0xcond1", m.ConditionID)
	assert.False(t, bool(m.Active))
	assert.True(t, bool(m.Closed))

	ids, err := parseStringArray(m.ClobTokenIDs)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, ids)
}
