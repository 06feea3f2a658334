package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayAcceptsBothFormats(t *testing.T) {
	iso, err := ParseDay("2025-03-10")
	require.NoError(t, err)
	stored, err := ParseDay("10/03/2025")
	require.NoError(t, err)

	assert.True(t, iso.Equal(stored))
	assert.Equal(t, "10/03/2025", iso.String())
	assert.Equal(t, "2025-03-10", stored.ISO())

	_, err = ParseISODay("10/03/2025")
	assert.Error(t, err)
	_, err = ParseDay("tomorrow")
	assert.Error(t, err)
}

func TestDayJSONKeepsMalformedText(t *testing.T) {
	var window PreSaleWindow
	err := json.Unmarshal([]byte(`{"id":1,"start_date":"31/02/2025","end_date":"15/03/2025"}`), &window)
	require.NoError(t, err)

	assert.False(t, window.StartDate.Valid())
	assert.Equal(t, "31/02/2025", window.StartDate.Raw())
	assert.True(t, window.EndDate.Valid())

	out, err := json.Marshal(window.StartDate)
	require.NoError(t, err)
	assert.JSONEq(t, `"31/02/2025"`, string(out))

	assert.False(t, window.Contains(NewDay(2025, time.March, 1)))
}

func TestWindowContainsIsInclusive(t *testing.T) {
	window := PreSaleWindow{
		StartDate: NewDay(2025, time.March, 10),
		EndDate:   NewDay(2025, time.March, 20),
	}

	assert.True(t, window.Contains(NewDay(2025, time.March, 10)))
	assert.True(t, window.Contains(NewDay(2025, time.March, 20)))
	assert.False(t, window.Contains(NewDay(2025, time.March, 9)))
	assert.False(t, window.Contains(NewDay(2025, time.March, 21)))
}

func TestDayOfUsesLocation(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	instant := time.Date(2025, time.March, 11, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, "10/03/2025", DayOf(instant, saoPaulo).String())
	assert.Equal(t, "11/03/2025", DayOf(instant, time.UTC).String())
}
