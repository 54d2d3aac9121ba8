// Command validate runs offline integrity checks over a raw shelter dump: it
// normalizes the dump with the service's own domain package and verifies
// yield, derived-field consistency, ordering, and city grouping. Useful for
// vetting fixtures and captured API payloads before pointing the service at
// them.
//
// Usage:
//
//	go run ./cmd/validate -raw data/mock/shelters.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawPath := flag.String("raw", "", "path to a JSON array of raw shelter records")
	maxDropRate := flag.Float64("max-drop-rate", 0.10, "fail when more than this share of records is dropped")
	flag.Parse()

	if *rawPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*rawPath, *maxDropRate))
}

func run(rawPath string, maxDropRate float64) int {
	fmt.Println("=== Shelter Data Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read raw dump: %v\n", err)
		return 1
	}
	var records []domain.RawShelterRecord
	if err := json.Unmarshal(data, &records); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse raw dump: %v\n", err)
		return 1
	}

	snap, dropped, err := domain.Normalize(records, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: normalize: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateYield(records, snap, dropped, maxDropRate),
		validateDerivedFields(snap),
		validateOrdering(snap),
		validateCityGrouping(snap),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("validation FAILED")
		return 1
	}
	fmt.Printf("validation passed: %d shelters, %d dropped\n", len(snap.Shelters), dropped)
	return 0
}

func validateYield(records []domain.RawShelterRecord, snap *domain.Snapshot, dropped int, maxDropRate float64) *phase {
	p := &phase{name: "normalization yield"}

	if len(snap.Shelters)+dropped != len(records) {
		p.errorf("kept %d + dropped %d != %d raw records", len(snap.Shelters), dropped, len(records))
	}
	rate := float64(dropped) / float64(len(records))
	if rate > maxDropRate {
		p.errorf("drop rate %.1f%% exceeds %.1f%%", rate*100, maxDropRate*100)
	}
	return p
}

func validateDerivedFields(snap *domain.Snapshot) *phase {
	p := &phase{name: "derived field consistency"}

	for _, s := range snap.Shelters {
		if got := domain.DeriveAvailability(s.Capacity, s.ShelteredPeople); got != s.Availability {
			p.errorf("%s: availability %q, capacity pair derives %q", s.ID, s.Availability, got)
		}
		if s.Capacity != nil && s.ShelteredPeople != nil {
			if s.Vacancies == nil {
				p.errorf("%s: known capacity pair but no vacancies", s.ID)
			} else if *s.Vacancies != *s.Capacity-*s.ShelteredPeople {
				p.errorf("%s: vacancies %d != %d-%d", s.ID, *s.Vacancies, *s.Capacity, *s.ShelteredPeople)
			}
		} else if s.Vacancies != nil {
			p.errorf("%s: vacancies set despite unknown capacity pair", s.ID)
		}
		if !strings.Contains(s.CapacityInfo, "/") {
			p.errorf("%s: malformed capacityInfo %q", s.ID, s.CapacityInfo)
		}
		if !strings.HasPrefix(s.Link, "https://sos-rs.com/abrigo/") {
			p.errorf("%s: unexpected link %q", s.ID, s.Link)
		}
		if (s.Latitude == nil) != (s.Longitude == nil) {
			p.errorf("%s: half a coordinate pair", s.ID)
		}
	}
	return p
}

func validateOrdering(snap *domain.Snapshot) *phase {
	p := &phase{name: "ordering and identity"}

	seen := make(map[string]time.Time, len(snap.Shelters))
	for i, s := range snap.Shelters {
		if s.ID == "" {
			p.errorf("index %d: empty id", i)
			continue
		}
		if i > 0 && s.UpdatedAt.After(snap.Shelters[i-1].UpdatedAt) {
			p.errorf("%s: updatedAt out of order at index %d", s.ID, i)
		}
		if prev, dup := seen[s.ID]; dup && prev.Equal(s.UpdatedAt) {
			p.errorf("%s: duplicate record with identical updatedAt", s.ID)
		}
		seen[s.ID] = s.UpdatedAt
	}
	return p
}

func validateCityGrouping(snap *domain.Snapshot) *phase {
	p := &phase{name: "city grouping"}

	counts := make(map[string]int)
	for _, s := range snap.Shelters {
		counts[s.CityOrUnknown()]++
	}
	total := float64(len(snap.Shelters))

	for _, s := range snap.Shelters {
		city := s.CityOrUnknown()
		share := float64(counts[city]) / total
		switch s.CityGroup {
		case city:
			if share < 0.05 {
				p.errorf("%s: city %q kept its bucket at %.1f%% share", s.ID, city, share*100)
			}
		case domain.CityOther:
			if share >= 0.05 {
				p.errorf("%s: city %q grouped into Other at %.1f%% share", s.ID, city, share*100)
			}
		default:
			p.errorf("%s: cityGroup %q matches neither city nor Other", s.ID, s.CityGroup)
		}
	}
	return p
}
