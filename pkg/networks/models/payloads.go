package models

import (
	"encoding/json"
)

// DirectoryResponse is the body of GET {base}.
type DirectoryResponse struct {
	Networks []RawNetwork `json:"networks"`
}

// RawNetwork mirrors one directory entry before normalisation.
type RawNetwork struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location RawLocation `json:"location"`
	Extra    RawExtra    `json:"extra"`
}

type RawLocation struct {
	City      *string  `json:"city"`
	Country   *string  `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// RawExtra keeps slots undecoded since feeds publish it as a number, a string or not at all.
type RawExtra struct {
	Slots json.RawMessage `json:"slots"`
}

// DetailResponse is the body of GET {base}/{id}. The live API nests stations
// under "network"; some mirrors return them at the top level.
type DetailResponse struct {
	Network  *DetailBody     `json:"network"`
	Stations []StationRecord `json:"stations"`
}

type DetailBody struct {
	ID       string          `json:"id"`
	Stations []StationRecord `json:"stations"`
}

// StationList returns whichever station list the payload carried.
func (r DetailResponse) StationList() []StationRecord {
	if r.Network != nil && r.Network.Stations != nil {
		return r.Network.Stations
	}
	if r.Stations != nil {
		return r.Stations
	}
	return []StationRecord{}
}
