package models

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountUnmarshal(t *testing.T) {
	cases := map[string]int{
		`null`:  0,
		`""`:    0,
		`7`:     7,
		`"12"`:  12,
		`3.9`:   3,
		`-2`:    -2,
		`" 4 "`: 4,
	}
	for in, want := range cases {
		var c Count
		require.NoError(t, json.Unmarshal([]byte(in), &c), in)
		assert.Equal(t, want, int(c), in)
	}

	var c Count
	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &c))
	assert.Error(t, json.Unmarshal([]byte(`true`), &c))
}

func TestCountNonNegative(t *testing.T) {
	assert.Equal(t, 0, Count(-5).NonNegative())
	assert.Equal(t, 0, Count(0).NonNegative())
	assert.Equal(t, 9, Count(9).NonNegative())
}

func TestStationRecordMissingFields(t *testing.T) {
	var stations []StationRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"free_bikes":3},{"empty_slots":null},{}]`), &stations))
	require.Len(t, stations, 3)
	assert.Equal(t, StationRecord{FreeBikes: 3}, stations[0])
	assert.Equal(t, StationRecord{}, stations[1])
	assert.Equal(t, StationRecord{}, stations[2])
}

func TestDetailResponseStationList(t *testing.T) {
	var nested DetailResponse
	require.NoError(t, json.Unmarshal([]byte(`{"network":{"id":"a","stations":[{"free_bikes":1}]}}`), &nested))
	assert.Len(t, nested.StationList(), 1)

	var flat DetailResponse
	require.NoError(t, json.Unmarshal([]byte(`{"stations":[{"free_bikes":1},{"free_bikes":2}]}`), &flat))
	assert.Len(t, flat.StationList(), 2)

	var none DetailResponse
	require.NoError(t, json.Unmarshal([]byte(`{"network":{"id":"a"}}`), &none))
	assert.NotNil(t, none.StationList())
	assert.Empty(t, none.StationList())
}

func TestStatusErrorIs(t *testing.T) {
	limited := &StatusError{URL: "http://x/a", StatusCode: http.StatusTooManyRequests}
	assert.True(t, errors.Is(limited, ErrRateLimited))
	assert.False(t, errors.Is(limited, ErrTransport))

	failed := &StatusError{URL: "http://x/a", StatusCode: http.StatusBadGateway}
	assert.True(t, errors.Is(failed, ErrTransport))
	assert.False(t, errors.Is(failed, ErrRateLimited))
	assert.Contains(t, failed.Error(), "502")
}

func TestDecodeCacheEntry(t *testing.T) {
	b, err := json.Marshal(CacheEntry{NetworkID: "velib", Payload: NetworkDetail{NetworkID: "velib"}})
	require.NoError(t, err)

	entry, err := DecodeCacheEntry("velib", b)
	require.NoError(t, err)
	assert.Equal(t, "velib", entry.Payload.NetworkID)

	_, err = DecodeCacheEntry("citi-bike", b)
	assert.ErrorIs(t, err, ErrCacheCorruption)

	_, err = DecodeCacheEntry("velib", []byte("{not json"))
	assert.ErrorIs(t, err, ErrCacheCorruption)
}

func TestCountryKeyAndMetrics(t *testing.T) {
	fr, empty := "FR", ""
	assert.Equal(t, "FR", NetworkDescriptor{Country: &fr}.CountryKey())
	assert.Equal(t, UnknownCountry, NetworkDescriptor{Country: &empty}.CountryKey())
	assert.Equal(t, UnknownCountry, NetworkDescriptor{}.CountryKey())

	m, err := ParseMetric("free_bikes")
	require.NoError(t, err)
	assert.Equal(t, MetricFreeBikes, m)
	_, err = ParseMetric("bogus")
	assert.Error(t, err)

	row := EnrichedNetworkRow{
		NetworkDescriptor: NetworkDescriptor{DeclaredCapacity: 40},
		StationCount:      3, FreeBikes: 5, EmptySlots: 7,
	}
	assert.Equal(t, 3, row.Value(MetricStationCount))
	assert.Equal(t, 5, row.Value(MetricFreeBikes))
	assert.Equal(t, 7, row.Value(MetricEmptySlots))
	assert.Equal(t, 40, row.Value(MetricDeclaredCapacity))
	assert.Equal(t, 0, row.Value(Metric("bogus")))
}
