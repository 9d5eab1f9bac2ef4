// Package listing defines core types shared across subsystems.
package listing

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values held in the progress store.
const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
)

// Outcome describes how a run reached its terminal state. A run that stopped
// because it hit the recency cutoff is a success, not an error.
type Outcome string

// Terminal run outcomes.
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeStoppedEarly Outcome = "stopped_early"
	OutcomeAborted      Outcome = "aborted"
)

// IsTerminal reports whether the status ends the job lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CrawlParams captures the caller-supplied knobs for one crawl run.
type CrawlParams struct {
	// CutoffDays is the maximum listing age before the run stops.
	CutoffDays int `json:"recency_cutoff_days"`
	// MaxRecords caps the total number of records ingested by the run.
	MaxRecords int `json:"max_records"`
}

// LogEntry is one timestamped line in a job's bounded progress log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Job is the ephemeral, pollable progress record for one run. Its fields are
// mutated only by the crawl goroutine that owns it; readers receive copies.
type Job struct {
	ID              string     `json:"id"`
	Status          JobStatus  `json:"status"`
	Outcome         Outcome    `json:"outcome,omitempty"`
	Params          CrawlParams `json:"params"`
	PagesFetched    int        `json:"pages_fetched"`
	RecordsIngested int        `json:"records_ingested"`
	SourceTotal     *int       `json:"reported_source_total"`
	CurrentAction   string     `json:"current_action"`
	ErrorText       string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Log             []LogEntry `json:"log"`
}

// Run is the persisted metadata row for one crawl invocation.
type Run struct {
	ID          string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CutoffDays  int       `json:"recency_cutoff_days"`
	SourceTotal *int      `json:"reported_source_total"`
	Ingested    int       `json:"records_ingested_count"`
}

// SortOrder is the result ordering requested from the page source.
type SortOrder string

// SortNewestFirst is a correctness precondition for the recency stop rule:
// without it the crawl would terminate on older interleaved results.
const SortNewestFirst SortOrder = "nd"

// PageDocument is one fetched result page before extraction.
type PageDocument struct {
	URL          string
	StatusCode   int
	HTML         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// RawRecord is a source-shaped, pre-normalization listing payload.
type RawRecord = map[string]any

// Record is the canonical flat listing persisted per result. Every field not
// resolvable from the source is nil, never omitted, so the persisted shape is
// always complete.
type Record struct {
	PropertyID   *string `json:"property_id"`
	Reference    *string `json:"reference"`
	Title        *string `json:"title"`
	PropertyType *string `json:"property_type"`
	OfferingType *string `json:"offering_type"`
	Description  *string `json:"description"`

	PriceValue    *float64 `json:"price_value"`
	PriceCurrency *string  `json:"price_currency"`
	PriceIsHidden *bool    `json:"price_is_hidden"`
	PricePeriod   *string  `json:"price_period"`

	PropertyVideoURL   *string `json:"property_video_url"`
	PropertyHasView360 *bool   `json:"property_has_view_360"`

	SizeValue        *float64 `json:"size_value"`
	SizeUnit         *string  `json:"size_unit"`
	Bedrooms         *float64 `json:"bedrooms"`
	Bathrooms        *float64 `json:"bathrooms"`
	Furnished        *string  `json:"furnished"`
	CompletionStatus *string  `json:"completion_status"`

	LocationID       *string  `json:"location_id"`
	LocationPath     *string  `json:"location_path"`
	LocationType     *string  `json:"location_type"`
	LocationFullName *string  `json:"location_full_name"`
	LocationName     *string  `json:"location_name"`
	LocationLat      *float64 `json:"location_lat"`
	LocationLon      *float64 `json:"location_lon"`

	Amenities   *string `json:"amenities"`
	IsAvailable *bool   `json:"is_available"`
	IsNewInsert *bool   `json:"is_new_insert"`
	ListedDate  *string `json:"listed_date"`
	LiveViewing *string `json:"live_viewing"`
	QS          *string `json:"qs"`
	RSP         *string `json:"rsp"`
	RSS         *string `json:"rss"`

	PropertyIsAvailable              *bool `json:"property_is_available"`
	PropertyIsVerified               *bool `json:"property_is_verified"`
	PropertyIsDirectFromDeveloper    *bool `json:"property_is_direct_from_developer"`
	PropertyIsNewConstruction        *bool `json:"property_is_new_construction"`
	PropertyIsFeatured               *bool `json:"property_is_featured"`
	PropertyIsPremium                *bool `json:"property_is_premium"`
	PropertyIsExclusive              *bool `json:"property_is_exclusive"`
	PropertyIsBrokerProjectProperty  *bool `json:"property_is_broker_project_property"`
	PropertyIsSmartAd                *bool `json:"property_is_smart_ad"`
	PropertyIsSpotlightListing       *bool `json:"property_is_spotlight_listing"`
	PropertyIsClaimedByAgent         *bool `json:"property_is_claimed_by_agent"`
	PropertyIsUnderOfferByCompetitor *bool `json:"property_is_under_offer_by_competitor"`
	PropertyIsCommunityExpert        *bool `json:"property_is_community_expert"`
	PropertyIsCTS                    *bool `json:"property_is_cts"`

	AgentIsSuperAgent *bool   `json:"agent_is_super_agent"`
	BrokerName        *string `json:"broker_name"`
	ListingType       *string `json:"listing_type"`
	CategoryID        *string `json:"category_id"`
	PropertyImages    *string `json:"property_images"`
	PropertyTypeID    *string `json:"property_type_id"`

	PropertyUtilitiesPriceType *string `json:"property_utilities_price_type"`
	ContactOptions             *string `json:"contact_options"`

	AgentID        *string `json:"agent_id"`
	AgentUserID    *string `json:"agent_user_id"`
	AgentName      *string `json:"agent_name"`
	AgentImage     *string `json:"agent_image"`
	AgentLanguages *string `json:"agent_languages"`
	BrokerLogo     *string `json:"broker_logo"`
	AgentEmail     *string `json:"agent_email"`
	BrokerID       *string `json:"broker_id"`
	BrokerEmail    *string `json:"broker_email"`
	BrokerPhone    *string `json:"broker_phone"`
	BrokerAddress  *string `json:"broker_address"`

	// RunID links the record to its owning run; the record store stamps it
	// on insert.
	RunID string `json:"run_id"`
}
