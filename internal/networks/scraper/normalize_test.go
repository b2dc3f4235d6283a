package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

func TestNormalizeDescriptors(t *testing.T) {
	var payload models.DirectoryResponse
	require.NoError(t, json.Unmarshal([]byte(`{"networks":[
		{"id":"a","name":"Alpha","location":{"country":"US"},"extra":{"slots":12.0}},
		{"name":"","location":{},"extra":{"slots":"many"}},
		{"id":"c","name":"Gamma","extra":{"slots":-4}}
	]}`), &payload))

	got := NormalizeDescriptors(payload.Networks)

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 12, got[0].DeclaredCapacity)
	assert.False(t, got[0].Synthetic)

	assert.Equal(t, "unknown-1", got[1].ID)
	assert.True(t, got[1].Synthetic)
	assert.Equal(t, "Unknown", got[1].Name)
	assert.Equal(t, 0, got[1].DeclaredCapacity)
	assert.Equal(t, models.UnknownCountry, got[1].CountryKey())

	assert.Equal(t, 0, got[2].DeclaredCapacity)
}

func TestNormalizeEmpty(t *testing.T) {
	got := NormalizeDescriptors(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
