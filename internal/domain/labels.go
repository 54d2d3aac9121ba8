package domain

// statusLabels is the typed (status, language) presentation table. The
// Portuguese labels are the operational terms used by SOS-RS volunteers.
var statusLabels = map[AvailabilityStatus]map[Language]string{
	StatusAvailable: {LangPortuguese: "Disponível", LangEnglish: "Available"},
	StatusCheck:     {LangPortuguese: "Consultar", LangEnglish: "Check"},
	StatusCrowded:   {LangPortuguese: "Cheio", LangEnglish: "Crowded"},
	StatusFull:      {LangPortuguese: "Lotado", LangEnglish: "Full"},
}

// Label returns the display text for the status in the given language,
// falling back to the enum value for unknown combinations.
func (s AvailabilityStatus) Label(lang Language) string {
	if byLang, ok := statusLabels[s]; ok {
		if label, ok := byLang[lang]; ok {
			return label
		}
		if label, ok := byLang[LangEnglish]; ok {
			return label
		}
	}
	return string(s)
}

// ParseStatus maps a wire value to the closed status set. The second return
// is false for anything outside the enum.
func ParseStatus(s string) (AvailabilityStatus, bool) {
	switch AvailabilityStatus(s) {
	case StatusAvailable, StatusCheck, StatusCrowded, StatusFull:
		return AvailabilityStatus(s), true
	}
	return "", false
}
