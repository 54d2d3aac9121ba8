package domain

// Language identifies a viewer-facing locale.
type Language string

const (
	LangPortuguese Language = "pt-br"
	LangEnglish    Language = "en"
)

// ParseLanguage maps arbitrary input to a supported language, defaulting to
// English for anything unrecognized.
func ParseLanguage(s string) Language {
	if Language(s) == LangPortuguese {
		return LangPortuguese
	}
	return LangEnglish
}

// GeoContext is the cached resolution of a network address, keyed by address
// in the store under user_location:<addr> with a fixed TTL.
type GeoContext struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// SessionContext is per-viewer sticky state, created once per session from a
// GeoContext (or explicit override) and extended on every access.
type SessionContext struct {
	Language  Language `json:"language"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      string   `json:"city,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
}

// HasLocation reports whether the viewer has resolved coordinates, the
// precondition for distance annotation.
func (sc SessionContext) HasLocation() bool {
	return sc.Latitude != nil && sc.Longitude != nil
}
