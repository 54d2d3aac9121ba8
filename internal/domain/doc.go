// Package domain models SOS-RS emergency shelter data.
//
// # Data Source
//
// Shelter records originate from the SOS-RS coordination API
// (https://api.sos-rs.com/shelters), a volunteer-run registry stood up during
// the 2024 Rio Grande do Sul floods. The endpoint is paginated with `page` and
// `perPage` query parameters and wraps results as {data: {results, count}}.
// The reported count is authoritative but may drift while a fetch is in
// progress, since volunteers edit records continuously.
//
// # Upstream Conventions
//
// Identity:
//
//	Records carry an opaque "id". The public shelter page lives at
//	https://sos-rs.com/abrigo/<id>, which is preserved as the Link field.
//	Some API revisions emitted numeric ids; both forms decode to a string.
//
// Capacity:
//
//	"capacity" and "shelteredPeople" are nullable non-negative numbers.
//	Null means the shelter never reported the figure, not zero. Occupancy
//	above capacity is real (overflow intake), not a data error.
//
// Availability (derived, never source-supplied):
//
//	check      either capacity or shelteredPeople is null
//	full       shelteredPeople >  capacity
//	crowded    shelteredPeople == capacity
//	available  otherwise
//
// Source-internal fields:
//
//	The API also returns donation and address-component fields (pix keys,
//	street/streetNumber/neighbourhood/zipCode, prioritySum, createdAt) and a
//	nested shelterSupplies structure. None of these belong to the canonical
//	entity; supplies are flattened to a display string before the structure
//	is dropped.
//
// City grouping:
//
//	Aggregate views bucket cities to keep low-frequency ones from
//	fragmenting charts. A missing city falls in the "Unknown" bucket; any
//	city under 5% of the snapshot's records is remapped to "Other". The
//	threshold is recomputed per snapshot.
package domain
