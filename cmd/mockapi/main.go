// Command mockapi serves a local stand-in for the SOS-RS shelters endpoint,
// paginated with the same {data:{results,count}} envelope. Records come from
// a JSON fixture file or are synthesized, for developing against a stable
// upstream without network access.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :9090 -fixture data/mock/shelters.json
//	go run ./cmd/mockapi -addr :9090 -count 250
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// rawShelter mirrors the upstream wire shape, including fields the service
// itself never decodes, so fixtures exercise decode-by-omission.
type rawShelter struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	City            *string     `json:"city"`
	Latitude        *float64    `json:"latitude,omitempty"`
	Longitude       *float64    `json:"longitude,omitempty"`
	Capacity        *float64    `json:"capacity"`
	ShelteredPeople *float64    `json:"shelteredPeople"`
	Verified        bool        `json:"verified"`
	PetFriendly     bool        `json:"petFriendly"`
	Actived         bool        `json:"actived"`
	UpdatedAt       string      `json:"updatedAt"`
	ShelterSupplies []rawSupply `json:"shelterSupplies"`

	// Source-internal fields the consumer must drop.
	Pix     string `json:"pix,omitempty"`
	Street  string `json:"street,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

type rawSupply struct {
	Supply struct {
		Name string `json:"name"`
	} `json:"supply"`
}

type pageResponse struct {
	Data pageData `json:"data"`
}

type pageData struct {
	Results []rawShelter `json:"results"`
	Count   int          `json:"count"`
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	fixture := flag.String("fixture", "", "path to a JSON array of raw shelter records")
	count := flag.Int("count", 120, "number of synthetic records when no fixture is given")
	flag.Parse()

	var records []rawShelter
	var err error
	if *fixture != "" {
		records, err = loadFixture(*fixture)
		if err != nil {
			log.Fatalf("load fixture: %v", err)
		}
		log.Printf("serving %d records from %s", len(records), *fixture)
	} else {
		records = synthesize(*count)
		log.Printf("serving %d synthetic records", len(records))
	}

	http.HandleFunc("GET /shelters", func(w http.ResponseWriter, r *http.Request) {
		page := intParam(r, "page", 1)
		perPage := intParam(r, "perPage", 20)
		if page < 1 || perPage < 1 {
			http.Error(w, "page and perPage must be positive", http.StatusBadRequest)
			return
		}

		start := (page - 1) * perPage
		end := min(start+perPage, len(records))
		results := []rawShelter{}
		if start < len(records) {
			results = records[start:end]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pageResponse{
			Data: pageData{Results: results, Count: len(records)},
		})
	})

	log.Printf("mock shelters API listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func loadFixture(path string) ([]rawShelter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []rawShelter
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

// synthesize produces a plausible mix of statuses, cities, and gaps.
func synthesize(n int) []rawShelter {
	cities := []string{"Porto Alegre", "Canoas", "São Leopoldo", "Novo Hamburgo", "Guaíba"}
	base := time.Now().UTC().Add(-24 * time.Hour)

	records := make([]rawShelter, n)
	for i := range records {
		city := cities[i%len(cities)]
		capacity := float64(50 + 10*(i%20))
		sheltered := capacity * float64(i%5) / 4 // spans empty through overfull

		rec := rawShelter{
			ID:              fmt.Sprintf("mock-%04d", i),
			Name:            fmt.Sprintf("Abrigo %s %d", city, i),
			Address:         fmt.Sprintf("Rua %d, %s", 100+i, city),
			City:            &city,
			Capacity:        &capacity,
			ShelteredPeople: &sheltered,
			Verified:        i%3 == 0,
			PetFriendly:     i%4 == 0,
			Actived:         true,
			UpdatedAt:       base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Pix:             "00000000000",
		}
		if i%7 != 0 { // leave some without coordinates
			lat := -30.0346 + float64(i%50)*0.01
			lon := -51.2177 + float64(i%50)*0.01
			rec.Latitude = &lat
			rec.Longitude = &lon
		}
		if i%11 == 0 { // and some with unknown occupancy
			rec.ShelteredPeople = nil
		}
		if i%6 == 0 {
			var supply rawSupply
			supply.Supply.Name = "Água potável"
			rec.ShelterSupplies = []rawSupply{supply}
		}
		records[i] = rec
	}
	return records
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
