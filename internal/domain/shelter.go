package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AvailabilityStatus classifies a shelter's occupancy relative to capacity.
// It is always derived from (capacity, shelteredPeople), never source-supplied.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "available"
	StatusCheck     AvailabilityStatus = "check"
	StatusCrowded   AvailabilityStatus = "crowded"
	StatusFull      AvailabilityStatus = "full"
)

// AllStatuses lists the closed set of availability states.
var AllStatuses = []AvailabilityStatus{StatusAvailable, StatusCheck, StatusCrowded, StatusFull}

// DeriveAvailability maps the capacity pair to a status. Total and pure:
// check when either input is unknown, full when occupancy exceeds capacity,
// crowded at exactly capacity, available otherwise.
func DeriveAvailability(capacity, sheltered *int) AvailabilityStatus {
	switch {
	case capacity == nil || sheltered == nil:
		return StatusCheck
	case *sheltered > *capacity:
		return StatusFull
	case *sheltered == *capacity:
		return StatusCrowded
	default:
		return StatusAvailable
	}
}

// City bucket names used by CityGroup.
const (
	CityUnknown = "Unknown"
	CityOther   = "Other"
)

// Shelter is the canonical record for one physical shelter. Immutable once
// produced by a refresh cycle; the query engine annotates copies, never the
// snapshot's own values.
type Shelter struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Capacity        *int `json:"capacity,omitempty"`
	ShelteredPeople *int `json:"shelteredPeople,omitempty"`

	Verified    bool `json:"verified"`
	PetFriendly bool `json:"petFriendly"`

	Supplies  string    `json:"supplies,omitempty"`
	Link      string    `json:"link"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Derived by the normalizer.
	Availability AvailabilityStatus `json:"availability"`
	Vacancies    *int               `json:"vacancies,omitempty"`
	CapacityInfo string             `json:"capacityInfo"`
	CityGroup    string             `json:"cityGroup"`

	// Derived per query, relative to the viewer. Nil when either side
	// lacks coordinates.
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// CityOrUnknown returns the city name, or the Unknown bucket when absent.
func (s Shelter) CityOrUnknown() string {
	if s.City == nil || strings.TrimSpace(*s.City) == "" {
		return CityUnknown
	}
	return *s.City
}

// HasCoordinates reports whether the shelter can be placed on a map.
func (s Shelter) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Snapshot is one immutable, fully consistent view of all shelters as of a
// refresh cycle, sorted by UpdatedAt descending.
type Snapshot struct {
	Shelters    []Shelter `json:"shelters"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// FlexID decodes an upstream identity that may be a JSON string or number.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// RawSupply mirrors the nested shelterSupplies entries upstream.
type RawSupply struct {
	Supply struct {
		Name string `json:"name"`
	} `json:"supply"`
}

// RawShelterRecord is the upstream wire shape. Only canonical-relevant fields
// are decoded; donation and address-component fields the API also sends are
// dropped by omission.
type RawShelterRecord struct {
	ID              FlexID      `json:"id"`
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	City            *string     `json:"city"`
	Latitude        *float64    `json:"latitude"`
	Longitude       *float64    `json:"longitude"`
	Capacity        *float64    `json:"capacity"`
	ShelteredPeople *float64    `json:"shelteredPeople"`
	Verified        *bool       `json:"verified"`
	PetFriendly     *bool       `json:"petFriendly"`
	Actived         *bool       `json:"actived"`
	UpdatedAt       string      `json:"updatedAt"`
	ShelterSupplies []RawSupply `json:"shelterSupplies"`
}
