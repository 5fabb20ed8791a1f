package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse is a simple error payload for handler-level failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ClientDTO is the API representation of a client
type ClientDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateClientRequest creates a new client
type CreateClientRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// LocationDTO is the API representation of a canonical location
type LocationDTO struct {
	ID                  uuid.UUID `json:"id"`
	ClientID            uuid.UUID `json:"clientId"`
	Name                string    `json:"name"`
	StoreCode           string    `json:"storeCode,omitempty"`
	Address             string    `json:"address,omitempty"`
	City                string    `json:"city,omitempty"`
	State               string    `json:"state,omitempty"`
	Zip                 string    `json:"zip,omitempty"`
	UberEatsName        string    `json:"uberEatsName,omitempty"`
	UberEatsLabel       string    `json:"uberEatsLabel,omitempty"`
	DoorDashName        string    `json:"doorDashName,omitempty"`
	DoorDashMerchantKey string    `json:"doorDashMerchantKey,omitempty"`
	GrubhubName         string    `json:"grubhubName,omitempty"`
	GrubhubStoreNumber  string    `json:"grubhubStoreNumber,omitempty"`
	Verified            bool      `json:"verified"`
	Tag                 string    `json:"tag,omitempty"`
}

// MergeLocationRequest merges a source location into a target: dependent
// transactions are reassigned to the target and the source is deleted
type MergeLocationRequest struct {
	TargetID uuid.UUID `json:"targetId" validate:"required"`
}

// MasterImportSummary reports the outcome of a master-location list import
type MasterImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// IngestResult reports the outcome of one platform export ingestion
type IngestResult struct {
	Platform     Platform `json:"platform"`
	RowsRead     int      `json:"rowsRead"`
	Transactions int      `json:"transactions"`
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	SkippedRows  int      `json:"skippedRows"`
	Unmapped     int      `json:"unmapped"`
	ArchivePath  string   `json:"archivePath,omitempty"`
}

// MetricsFilter scopes metric aggregation. Zero-valued optional fields mean
// "no filter"; an absent client degrades to empty results, not an error.
type MetricsFilter struct {
	ClientID        uuid.UUID
	LocationID      *uuid.UUID
	Platform        *Platform
	WeekStart       *time.Time
	WeekEnd         *time.Time
	IncludeUnmapped bool
}

// PlatformMetrics holds the per-platform financial/marketing rollup.
// Invariants: MarketingSales+OrganicSales == TotalSales and
// MarketingOrders+OrganicOrders == Orders.
type PlatformMetrics struct {
	Platform            Platform `json:"platform,omitempty"`
	Orders              int      `json:"orders"`
	MarketingOrders     int      `json:"marketingOrders"`
	OrganicOrders       int      `json:"organicOrders"`
	TotalSales          float64  `json:"totalSales"`
	MarketingSales      float64  `json:"marketingSales"`
	OrganicSales        float64  `json:"organicSales"`
	AvgOrderValue       float64  `json:"avgOrderValue"`
	AdSpend             float64  `json:"adSpend"`
	OfferValue          float64  `json:"offerValue"`
	MarketingInvestment float64  `json:"marketingInvestment"`
	ROAS                float64  `json:"roas"`
	NetPayout           float64  `json:"netPayout"`
	PayoutPct           float64  `json:"payoutPct"`
}

// OverviewMetrics is the portfolio rollup: per-platform metrics plus totals.
// Blended ROAS and payout percentage in Totals are recomputed from the summed
// numerators/denominators, never averaged from the per-platform percentages.
type OverviewMetrics struct {
	Platforms    []PlatformMetrics `json:"platforms"`
	Totals       PlatformMetrics   `json:"totals"`
	WeekOverWeek *WeekOverWeek     `json:"weekOverWeek,omitempty"`
}

// WeekOverWeek carries percentage deltas against the preceding period. A nil
// field means the previous value was zero or absent and the delta is undefined;
// callers must render it as "no data", not 0%.
type WeekOverWeek struct {
	Orders         *float64 `json:"orders"`
	TotalSales     *float64 `json:"totalSales"`
	MarketingSales *float64 `json:"marketingSales"`
	MarketingSpend *float64 `json:"marketingSpend"`
	ROAS           *float64 `json:"roas"`
	NetPayout      *float64 `json:"netPayout"`
}

// LocationMetrics is the per-location rollup with a per-platform breakdown
type LocationMetrics struct {
	LocationID   uuid.UUID         `json:"locationId"`
	LocationName string            `json:"locationName"`
	StoreCode    string            `json:"storeCode,omitempty"`
	Tag          string            `json:"tag,omitempty"`
	Platforms    []PlatformMetrics `json:"platforms"`
	Totals       PlatformMetrics   `json:"totals"`
}

// StatementLine is one income-statement line item, expressed both as an
// absolute amount and as a percentage of the platform's sales including tax
type StatementLine struct {
	Amount     float64 `json:"amount"`
	PctOfSales float64 `json:"pctOfSales"`
}

// MarketingLines decomposes the marketing super-category
type MarketingLines struct {
	Loyalty                  StatementLine `json:"loyalty"`
	AdSpend                  StatementLine `json:"adSpend"`
	PromoSpend               StatementLine `json:"promoSpend"`
	PlatformMarketingFee     StatementLine `json:"platformMarketingFee"`
	MerchantFundedDiscount   StatementLine `json:"merchantFundedDiscount"`
	ThirdPartyFundedDiscount StatementLine `json:"thirdPartyFundedDiscount"`
	Total                    StatementLine `json:"total"`
}

// OtherLines decomposes the "others" super-category
type OtherLines struct {
	Tip            StatementLine `json:"tip"`
	RestaurantFees StatementLine `json:"restaurantFees"`
	Miscellaneous  StatementLine `json:"miscellaneous"`
	Unaccounted    StatementLine `json:"unaccounted"`
	Total          StatementLine `json:"total"`
}

// PlatformStatement is one platform's income statement for a date range.
// Sales-derived lines honor the platform's completion/channel criteria while
// NetPayout sums across all statuses; the two can legitimately diverge.
type PlatformStatement struct {
	Platform           Platform       `json:"platform,omitempty"`
	SalesInclTax       StatementLine  `json:"salesInclTax"`
	SalesExclTax       StatementLine  `json:"salesExclTax"`
	UnfulfilledSales   StatementLine  `json:"unfulfilledSales"`
	UnfulfilledRefunds StatementLine  `json:"unfulfilledRefunds"`
	TaxOnSales         StatementLine  `json:"taxOnSales"`
	TaxWithheld        StatementLine  `json:"taxWithheld"`
	TaxRemitted        StatementLine  `json:"taxRemitted"`
	Commission         StatementLine  `json:"commission"`
	DeliveryCharge     StatementLine  `json:"deliveryCharge"`
	Marketing          MarketingLines `json:"marketing"`
	CustomerRefunds    StatementLine  `json:"customerRefunds"`
	DisputesWon        StatementLine  `json:"disputesWon"`
	Others             OtherLines     `json:"others"`
	NetPayout          StatementLine  `json:"netPayout"`
	COGSEstimate       StatementLine  `json:"cogsEstimate"`
	NetMargin          StatementLine  `json:"netMargin"`
}

// IncomeStatement is the full cross-platform income statement
type IncomeStatement struct {
	ClientID uuid.UUID         `json:"clientId"`
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
	UberEats PlatformStatement `json:"uberEats"`
	DoorDash PlatformStatement `json:"doorDash"`
	Grubhub  PlatformStatement `json:"grubhub"`
	Totals   PlatformStatement `json:"totals"`
	COGSRate float64           `json:"cogsRate"`
}

// MergeSuggestion is an advisory pairing of two locations whose normalized
// names exceed the similarity threshold. Suggestions are never auto-applied.
type MergeSuggestion struct {
	LocationID    uuid.UUID `json:"locationId"`
	LocationName  string    `json:"locationName"`
	CandidateID   uuid.UUID `json:"candidateId"`
	CandidateName string    `json:"candidateName"`
	Similarity    float64   `json:"similarity"`
}

// WeeklyFinancialDTO is the API representation of one weekly rollup row
type WeeklyFinancialDTO struct {
	LocationID      uuid.UUID `json:"locationId"`
	LocationName    string    `json:"locationName"`
	WeekStart       time.Time `json:"weekStart"`
	Sales           float64   `json:"sales"`
	MarketingSales  float64   `json:"marketingSales"`
	MarketingSpend  float64   `json:"marketingSpend"`
	MarketingPct    float64   `json:"marketingPct"`
	ROAS            float64   `json:"roas"`
	Payout          float64   `json:"payout"`
	PayoutPct       float64   `json:"payoutPct"`
	PayoutAfterCOGS float64   `json:"payoutAfterCogs"`
}

// ToClientDTO maps a client model to its DTO
func ToClientDTO(c *Client) ClientDTO {
	return ClientDTO{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

// ToLocationDTO maps a location model to its DTO
func ToLocationDTO(l *Location) LocationDTO {
	return LocationDTO{
		ID:                  l.ID,
		ClientID:            l.ClientID,
		Name:                l.Name,
		StoreCode:           l.StoreCode,
		Address:             l.Address,
		City:                l.City,
		State:               l.State,
		Zip:                 l.Zip,
		UberEatsName:        l.UberEatsName,
		UberEatsLabel:       l.UberEatsLabel,
		DoorDashName:        l.DoorDashName,
		DoorDashMerchantKey: l.DoorDashMerchantKey,
		GrubhubName:         l.GrubhubName,
		GrubhubStoreNumber:  l.GrubhubStoreNumber,
		Verified:            l.Verified,
		Tag:                 l.Tag,
	}
}
