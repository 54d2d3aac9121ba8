package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// shelterPageURL is the public page pattern preserved as Shelter.Link.
const shelterPageURL = "https://sos-rs.com/abrigo/%s"

// cityGroupThreshold is the minimum share of a snapshot's records a city must
// hold to keep its own bucket. Recomputed for every snapshot.
const cityGroupThreshold = 0.05

// updatedAtLayouts are the timestamp formats observed across API revisions.
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize converts raw upstream records into a canonical Snapshot stamped
// with refreshedAt. Steps, in order: drop records without a usable identity
// or flagged inactive, strip source-internal fields (by decode omission),
// deduplicate exact duplicates, compute derived fields, stable-sort by
// UpdatedAt descending, and bucket cities.
//
// A record that fails any step is dropped and normalization continues; the
// second return reports how many were dropped. Zero valid records from a
// non-empty payload is ErrNormalizationFailed.
func Normalize(records []RawShelterRecord, refreshedAt time.Time) (*Snapshot, int, error) {
	shelters := make([]Shelter, 0, len(records))
	seen := make(map[recordKey]struct{}, len(records))
	dropped := 0

	for _, rec := range records {
		shelter, err := normalizeRecord(rec)
		if err != nil {
			dropped++
			continue
		}
		key := shelter.dedupeKey()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		shelters = append(shelters, shelter)
	}

	if len(shelters) == 0 {
		return nil, dropped, fmt.Errorf("%w: %d records, none valid", ErrNormalizationFailed, len(records))
	}

	sort.SliceStable(shelters, func(i, j int) bool {
		return shelters[i].UpdatedAt.After(shelters[j].UpdatedAt)
	})

	groupCities(shelters)

	return &Snapshot{Shelters: shelters, RefreshedAt: refreshedAt.UTC()}, dropped, nil
}

func normalizeRecord(rec RawShelterRecord) (Shelter, error) {
	id := strings.TrimSpace(string(rec.ID))
	if id == "" {
		return Shelter{}, fmt.Errorf("record has no usable identity")
	}
	if rec.Actived != nil && !*rec.Actived {
		return Shelter{}, fmt.Errorf("record %s is inactive", id)
	}

	updatedAt, err := parseUpdatedAt(rec.UpdatedAt)
	if err != nil {
		return Shelter{}, fmt.Errorf("record %s: %w", id, err)
	}

	capacity, err := toCount(rec.Capacity)
	if err != nil {
		return Shelter{}, fmt.Errorf("record %s capacity: %w", id, err)
	}
	sheltered, err := toCount(rec.ShelteredPeople)
	if err != nil {
		return Shelter{}, fmt.Errorf("record %s shelteredPeople: %w", id, err)
	}

	s := Shelter{
		ID:              id,
		Name:            strings.TrimSpace(rec.Name),
		Address:         strings.TrimSpace(rec.Address),
		City:            normalizeCity(rec.City),
		Latitude:        rec.Latitude,
		Longitude:       rec.Longitude,
		Capacity:        capacity,
		ShelteredPeople: sheltered,
		Verified:        rec.Verified != nil && *rec.Verified,
		PetFriendly:     rec.PetFriendly != nil && *rec.PetFriendly,
		Supplies:        flattenSupplies(rec.ShelterSupplies),
		Link:            fmt.Sprintf(shelterPageURL, id),
		UpdatedAt:       updatedAt,
	}

	s.Availability = DeriveAvailability(s.Capacity, s.ShelteredPeople)
	s.Vacancies = deriveVacancies(s.Capacity, s.ShelteredPeople)
	s.CapacityInfo = deriveCapacityInfo(s.Capacity, s.ShelteredPeople)

	return s, nil
}

func parseUpdatedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("missing updatedAt")
	}
	for _, layout := range updatedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable updatedAt %q", value)
}

// toCount converts a nullable upstream number to a non-negative count.
func toCount(v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 {
		return nil, fmt.Errorf("negative value %g", *v)
	}
	n := int(*v)
	return &n, nil
}

func normalizeCity(city *string) *string {
	if city == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*city)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func flattenSupplies(supplies []RawSupply) string {
	if len(supplies) == 0 {
		return ""
	}
	names := make([]string, 0, len(supplies))
	for _, s := range supplies {
		if name := strings.TrimSpace(s.Supply.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func deriveVacancies(capacity, sheltered *int) *int {
	if capacity == nil || sheltered == nil {
		return nil
	}
	v := *capacity - *sheltered
	return &v
}

// deriveCapacityInfo renders the sheltered/capacity display pair, with "-"
// standing in for unknown values, e.g. "120/300" or "-/300".
func deriveCapacityInfo(capacity, sheltered *int) string {
	format := func(v *int) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%d", *v)
	}
	return format(sheltered) + "/" + format(capacity)
}

// recordKey identifies an exact-duplicate record. A comparable struct keeps
// field boundaries intact, so field values containing arbitrary punctuation
// cannot collide two distinct records. Derived fields are functions of the
// listed inputs, so they add nothing to the key.
type recordKey struct {
	id, name, address, city string
	lat, lon                string
	capacityInfo            string
	verified, petFriendly   bool
	supplies                string
	updatedAt               int64
}

func (s Shelter) dedupeKey() recordKey {
	return recordKey{
		id:           s.ID,
		name:         s.Name,
		address:      s.Address,
		city:         deref(s.City),
		lat:          formatCoord(s.Latitude),
		lon:          formatCoord(s.Longitude),
		capacityInfo: s.CapacityInfo,
		verified:     s.Verified,
		petFriendly:  s.PetFriendly,
		supplies:     s.Supplies,
		updatedAt:    s.UpdatedAt.UnixNano(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

// groupCities assigns CityGroup in place: each shelter keeps its city when it
// holds at least 5% of the snapshot, otherwise falls into the Other bucket.
// Missing cities count under Unknown, which is subject to the same threshold.
func groupCities(shelters []Shelter) {
	counts := make(map[string]int)
	for _, s := range shelters {
		counts[s.CityOrUnknown()]++
	}
	total := float64(len(shelters))
	for i := range shelters {
		city := shelters[i].CityOrUnknown()
		if float64(counts[city])/total >= cityGroupThreshold {
			shelters[i].CityGroup = city
		} else {
			shelters[i].CityGroup = CityOther
		}
	}
}

// Cities returns the distinct city names in the snapshot, sorted, excluding
// the Unknown bucket. Used to populate filter options.
func (s *Snapshot) Cities() []string {
	set := make(map[string]struct{})
	for _, shelter := range s.Shelters {
		if shelter.City != nil {
			set[*shelter.City] = struct{}{}
		}
	}
	cities := make([]string, 0, len(set))
	for city := range set {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}
