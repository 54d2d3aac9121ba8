// Package query evaluates filtered, viewer-relative views over a dataset
// snapshot. Evaluation is pure: identical (snapshot, filters, session) inputs
// produce identical results, and the borrowed snapshot is never mutated.
package query

import (
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/observability"
)

// Filters selects a subset of a snapshot. Zero values match everything: an
// empty Search, empty slices and nil pointers each disable their predicate.
// There are no sentinel "all" values on the wire or in here.
type Filters struct {
	Search      string
	Cities      []string
	Statuses    []domain.AvailabilityStatus
	Verified    *bool
	PetFriendly *bool
}

// Aggregates are computed over the filtered set, before any view shaping.
type Aggregates struct {
	Total           int `json:"total"`
	PeopleSheltered int `json:"peopleSheltered"`
	Verified        int `json:"verified"`
	NotVerified     int `json:"notVerified"`
	PetFriendly     int `json:"petFriendly"`
}

// Result is one evaluated view: annotated copies of the matching shelters,
// sorted by distance to the viewer, plus the aggregate counts.
type Result struct {
	Items      []domain.Shelter `json:"items"`
	Aggregates Aggregates       `json:"aggregates"`
}

// MapPoint is a plottable marker for the map-oriented view. The viewer's own
// location appears as a synthetic point, never as a Shelter.
type MapPoint struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status,omitempty"`
	Viewer    bool    `json:"viewer,omitempty"`
}

// Engine evaluates queries over borrowed snapshots. The clock and metrics
// only feed observability; they never influence a result.
type Engine struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
}

func NewEngine(clock clockwork.Clock, metrics *observability.Metrics) *Engine {
	return &Engine{clock: clock, metrics: metrics}
}

// Query filters the snapshot, annotates per-viewer distance on copies, sorts
// by distance ascending with unknown distances last, and aggregates.
func (e *Engine) Query(snap *domain.Snapshot, filters Filters, sc domain.SessionContext) Result {
	start := e.clock.Now()

	items := make([]domain.Shelter, 0, len(snap.Shelters))
	var agg Aggregates
	for _, s := range snap.Shelters {
		if !matches(s, filters, sc.Language) {
			continue
		}
		agg.Total++
		if s.ShelteredPeople != nil {
			agg.PeopleSheltered += *s.ShelteredPeople
		}
		if s.Verified {
			agg.Verified++
		} else {
			agg.NotVerified++
		}
		if s.PetFriendly {
			agg.PetFriendly++
		}

		// The snapshot is borrowed; distance goes on the copy only.
		if sc.HasLocation() && s.HasCoordinates() {
			d := domain.DistanceKm(*sc.Latitude, *sc.Longitude, *s.Latitude, *s.Longitude)
			s.DistanceKm = &d
		} else {
			s.DistanceKm = nil
		}
		items = append(items, s)
	}

	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].DistanceKm, items[j].DistanceKm
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})

	e.metrics.QueriesServed.Inc()
	e.metrics.QueryDuration.Observe(e.clock.Since(start).Seconds())

	return Result{Items: items, Aggregates: agg}
}

// MapView projects a result onto plottable points, dropping items without
// coordinates and appending the viewer's synthetic marker when the session
// has a location.
func (e *Engine) MapView(res Result, sc domain.SessionContext) []MapPoint {
	points := make([]MapPoint, 0, len(res.Items)+1)
	for _, s := range res.Items {
		if !s.HasCoordinates() {
			continue
		}
		points = append(points, MapPoint{
			ID:        s.ID,
			Name:      s.Name,
			Latitude:  *s.Latitude,
			Longitude: *s.Longitude,
			Status:    string(s.Availability),
		})
	}
	if sc.HasLocation() {
		points = append(points, MapPoint{
			ID:        "viewer",
			Name:      "You",
			Latitude:  *sc.Latitude,
			Longitude: *sc.Longitude,
			Viewer:    true,
		})
	}
	return points
}

// matches applies the fixed predicate chain: search, city, status, verified,
// pet friendly. Predicates are independent and ANDed.
func matches(s domain.Shelter, f Filters, lang domain.Language) bool {
	if !matchesSearch(s, f.Search, lang) {
		return false
	}
	if len(f.Cities) > 0 &&
		!containsFold(f.Cities, s.CityOrUnknown()) &&
		!containsFold(f.Cities, s.CityGroup) {
		// Selecting the Other bucket matches its grouped members too.
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, s.Availability) {
		return false
	}
	if f.Verified != nil && s.Verified != *f.Verified {
		return false
	}
	if f.PetFriendly != nil && s.PetFriendly != *f.PetFriendly {
		return false
	}
	return true
}

// matchesSearch is a case-insensitive substring match over every display
// field, including the localized availability label the viewer would see.
func matchesSearch(s domain.Shelter, search string, lang domain.Language) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	fields := []string{
		s.Name,
		s.Address,
		s.CityOrUnknown(),
		s.Supplies,
		s.CapacityInfo,
		s.Link,
		s.Availability.Label(lang),
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsStatus(set []domain.AvailabilityStatus, v domain.AvailabilityStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
