package signal

import "time"

// Status tracks where a signal is in its lifecycle.
type Status string

const (
	// StatusNew means ingested, not yet triaged
	StatusNew Status = "new"

	// StatusTriaged means reviewed by an analyst, pending validation
	StatusTriaged Status = "triaged"

	// StatusValidated means confirmed as a genuine outbreak signal
	StatusValidated Status = "validated"

	// StatusDismissed means rejected by the manual workflow. The automated
	// path never writes this status; it deletes the row instead.
	StatusDismissed Status = "dismissed"
)

// Priority ranks signal severity, P1 most urgent.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}

// Category is the disease family a signal belongs to.
type Category string

const (
	CategoryVHF                Category = "vhf"
	CategoryRespiratory        Category = "respiratory"
	CategoryEnteric            Category = "enteric"
	CategoryVectorBorne        Category = "vector_borne"
	CategoryZoonotic           Category = "zoonotic"
	CategoryVaccinePreventable Category = "vaccine_preventable"
	CategoryEnvironmental      Category = "environmental"
	CategoryUnknown            Category = "unknown"
)

// Tier classifies the credibility of a signal's originating source,
// tier_1 most trusted.
type Tier string

const (
	Tier1 Tier = "tier_1"
	Tier2 Tier = "tier_2"
	Tier3 Tier = "tier_3"
)

// Signal is one candidate disease-outbreak report.
type Signal struct {
	ID string `json:"id"`

	// classification
	Disease    string   `json:"disease,omitempty"`
	Category   Category `json:"category,omitempty"`
	Priority   Priority `json:"priority"`
	Confidence int      `json:"confidence"`

	// content
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text,omitempty"`
	Language       string `json:"original_language,omitempty"`

	// location
	Country     string   `json:"country"`
	CountryISO  string   `json:"country_iso,omitempty"`
	Admin1      string   `json:"admin1,omitempty"`
	Admin2      string   `json:"admin2,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	// provenance
	SourceName        string     `json:"source_name,omitempty"`
	SourceType        string     `json:"source_type,omitempty"`
	SourceTier        Tier       `json:"source_tier,omitempty"`
	SourceURL         string     `json:"source_url,omitempty"`
	SourcePublishedAt *time.Time `json:"source_published_at,omitempty"`

	// epidemiological counters
	ReportedCases      *int  `json:"reported_cases,omitempty"`
	ReportedDeaths     *int  `json:"reported_deaths,omitempty"`
	AffectedPopulation *int  `json:"affected_population,omitempty"`
	CrossBorderRisk    *bool `json:"cross_border_risk,omitempty"`

	// lifecycle
	Status       Status     `json:"status"`
	AnalystNotes string     `json:"analyst_notes,omitempty"`
	TriagedBy    string     `json:"triaged_by,omitempty"`
	TriagedAt    *time.Time `json:"triaged_at,omitempty"`
	ValidatedBy  string     `json:"validated_by,omitempty"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text returns the translated text when present, else the original.
func (s *Signal) Text() string {
	if s.TranslatedText != "" {
		return s.TranslatedText
	}
	return s.OriginalText
}
