package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSlice_ScanAndValue(t *testing.T) {
	var s StringSlice
	require.NoError(t, s.Scan([]byte(`["golf","social"]`)))
	assert.Equal(t, StringSlice{"golf", "social"}, s)

	require.NoError(t, s.Scan("[]"))
	assert.Empty(t, s)

	require.NoError(t, s.Scan(nil))
	assert.Empty(t, s)

	assert.Error(t, s.Scan(42))

	s = StringSlice{"a"}
	val, err := s.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(val.([]byte)))
}

func TestStringSlice_Intersects(t *testing.T) {
	s := StringSlice{"improve_game", "socialize"}
	assert.True(t, s.Intersects([]string{"socialize"}))
	assert.False(t, s.Intersects([]string{"compete"}))
	assert.False(t, s.Intersects(nil))
	assert.False(t, StringSlice(nil).Intersects([]string{"socialize"}))
}

func TestCriteriaJSON_Scan(t *testing.T) {
	var cj CriteriaJSON
	require.NoError(t, cj.Scan(`{"tier":"premium","hasRoundsRemaining":true}`))
	require.NotNil(t, cj.Criteria)
	require.NotNil(t, cj.Criteria.Tier)
	assert.Equal(t, TierPremium, *cj.Criteria.Tier)
	assert.True(t, cj.Criteria.HasRoundsRemaining)

	require.NoError(t, cj.Scan(nil))
	assert.Nil(t, cj.Criteria)

	require.NoError(t, cj.Scan("null"))
	assert.Nil(t, cj.Criteria)

	assert.Error(t, cj.Scan(42))
}

func TestMonthStart(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)

	got := MonthStart(time.Date(2026, time.March, 31, 23, 59, 59, 0, loc))
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, loc), got)

	// First instant of a month is its own boundary
	first := time.Date(2026, time.April, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, first, MonthStart(first))
}
