package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeightKey(t *testing.T) {
	cases := map[string]WeightKey{
		"1":      1000,
		"1.0":    1000,
		"0.5":    500,
		"0,5":    500,
		"5 gr":   5000,
		"10g":    10000,
		"2 gram": 2000,
		"1000":   1000000,
	}
	for in, want := range cases {
		got, err := ParseWeightKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "0", "-1"} {
		_, err := ParseWeightKey(bad)
		assert.ErrorIs(t, err, ErrInvalidWeight, bad)
	}
}

func TestWeightKey_String(t *testing.T) {
	assert.Equal(t, "1.0", OneGram.String())
	assert.Equal(t, "0.5", WeightKey(500).String())
	assert.Equal(t, "100.0", WeightKey(100000).String())
}

func TestSpreadPct(t *testing.T) {
	assert.Equal(t, 5.26, SpreadPct(decimal.NewFromInt(1000000), decimal.NewFromInt(950000)))
	assert.Equal(t, 0.0, SpreadPct(decimal.NewFromInt(1000000), decimal.Zero))
}

func TestPriceSnapshot_JSONRoundTripKeepsWeightKeys(t *testing.T) {
	snap := NewSuccessSnapshot(time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC), map[WeightKey]PriceQuote{
		OneGram: NewPriceQuote(decimal.NewFromInt(1), decimal.NewFromInt(1000000), decimal.NewFromInt(950000)),
	})
	assert.Equal(t, "2026-10-19 09:00:00", snap.LastUpdate)
	assert.Equal(t, ZoneLabel, snap.Timezone)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"1.0":{"weight":1,"sell":1000000,"buy":950000,"spread_pct":5.26}`)

	var decoded PriceSnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	q, ok := decoded.OneGram()
	require.True(t, ok)
	assert.True(t, q.Sell.Equal(decimal.NewFromInt(1000000)))
}

func TestPriceSnapshot_OneGramLegacySpelling(t *testing.T) {
	var snap PriceSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"data":{"1":{"weight":1,"sell":10,"buy":9}}}`), &snap))

	q, ok := snap.OneGram()
	require.True(t, ok)
	assert.True(t, q.Buy.Equal(decimal.NewFromInt(9)))
}

func TestPriceSnapshot_Err(t *testing.T) {
	assert.NoError(t, PriceSnapshot{Success: true}.Err())
	assert.EqualError(t, PriceSnapshot{Error: "timeout"}.Err(), "timeout")
}
