package scraper

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const unknownName = "Unknown"

// NormalizeDescriptors turns raw directory entries into descriptors, in order.
// Entries without an id get a synthetic "unknown-<index>" id and are never fetched.
func NormalizeDescriptors(raw []models.RawNetwork) []models.NetworkDescriptor {
	out := make([]models.NetworkDescriptor, 0, len(raw))
	for idx, net := range raw {
		d := models.NetworkDescriptor{
			ID:               net.ID,
			Name:             net.Name,
			City:             net.Location.City,
			Country:          net.Location.Country,
			Latitude:         net.Location.Latitude,
			Longitude:        net.Location.Longitude,
			DeclaredCapacity: declaredCapacity(net.Extra.Slots),
		}
		if d.ID == "" {
			d.ID = fmt.Sprintf("unknown-%d", idx)
			d.Synthetic = true
		}
		if d.Name == "" {
			d.Name = unknownName
		}
		out = append(out, d)
	}
	return out
}

// declaredCapacity accepts only JSON numbers; anything else, or a negative value, is 0.
func declaredCapacity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return int(f)
}
