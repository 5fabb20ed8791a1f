package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns the id client-side when the caller did not. The column
// default only covers raw SQL inserts.
func (b *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Platform identifies one of the supported delivery marketplaces
type Platform string

const (
	PlatformUberEats Platform = "uber_eats"
	PlatformDoorDash Platform = "doordash"
	PlatformGrubhub  Platform = "grubhub"
)

// Platforms lists all supported platforms in a stable order
var Platforms = []Platform{PlatformUberEats, PlatformDoorDash, PlatformGrubhub}

// ParsePlatform converts a string into a Platform, accepting a few common
// spellings seen in older exports and API clients
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uber_eats", "ubereats", "uber-eats", "uber":
		return PlatformUberEats, nil
	case "doordash", "door_dash", "door-dash":
		return PlatformDoorDash, nil
	case "grubhub", "grub_hub", "grub-hub":
		return PlatformGrubhub, nil
	}
	return "", fmt.Errorf("unknown platform: %q", s)
}

// DisplayName returns the human-readable platform name
func (p Platform) DisplayName() string {
	switch p {
	case PlatformUberEats:
		return "Uber Eats"
	case PlatformDoorDash:
		return "DoorDash"
	case PlatformGrubhub:
		return "Grubhub"
	}
	return string(p)
}

// Client represents a tenant/brand whose delivery data is being analyzed.
// Clients own all locations and transactions transitively and are created
// administratively; they are immutable thereafter.
type Client struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null;uniqueIndex"`
}

// LocationTagUnmappedBucket marks the single per-client overflow location that
// receives transactions whose platform store reference could not be resolved.
const LocationTagUnmappedBucket = "unmapped_bucket"

// UnmappedBucketName is the canonical name given to auto-created bucket locations.
const UnmappedBucketName = "Unmapped"

// Location is the canonical physical store. Platform-specific alias fields are
// set-once-if-empty: once populated by a resolved match they are never silently
// overwritten by a different matched name.
type Location struct {
	BaseModel
	ClientID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Client    *Client   `gorm:"foreignKey:ClientID"`
	Name      string    `gorm:"type:varchar(200);not null;index"`
	StoreCode string    `gorm:"type:varchar(50);index;column:store_code"`
	Address   string    `gorm:"type:varchar(500)"`
	City      string    `gorm:"type:varchar(100)"`
	State     string    `gorm:"type:varchar(50)"`
	Zip       string    `gorm:"type:varchar(20)"`

	// Per-platform aliases and matching keys
	UberEatsName        string `gorm:"type:varchar(200);column:uber_eats_name"`
	UberEatsLabel       string `gorm:"type:varchar(50);column:uber_eats_label"`
	DoorDashName        string `gorm:"type:varchar(200);column:doordash_name"`
	DoorDashMerchantKey string `gorm:"type:varchar(100);column:doordash_merchant_key"`
	GrubhubName         string `gorm:"type:varchar(200);column:grubhub_name"`
	GrubhubStoreNumber  string `gorm:"type:varchar(50);column:grubhub_store_number"`

	Verified bool   `gorm:"not null;default:false"`
	Tag      string `gorm:"type:varchar(50);index"`
}

// IsUnmappedBucket reports whether this location is the client's overflow bucket
func (l *Location) IsUnmappedBucket() bool {
	return l.Tag == LocationTagUnmappedBucket
}

// UberEatsTransaction is one Uber Eats order settlement record. A single order
// can span multiple line-item rows in the export; the deduplicator keeps the
// last row per workflow id since later rows carry the aggregated totals.
type UberEatsTransaction struct {
	BaseModel
	ClientID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_ue_client_workflow,priority:1"`
	LocationID *uuid.UUID `gorm:"type:uuid;index"`
	Location   *Location  `gorm:"foreignKey:LocationID"`

	WorkflowID  string    `gorm:"type:varchar(100);not null;column:workflow_id;uniqueIndex:idx_ue_client_workflow,priority:2"`
	OrderID     string    `gorm:"type:varchar(100);column:order_id"`
	OrderDate   time.Time `gorm:"index"`
	StoreName   string    `gorm:"type:varchar(200);column:store_name"`
	StoreID     string    `gorm:"type:varchar(100);column:store_id"`
	OrderStatus string    `gorm:"type:varchar(50);column:order_status"`
	DiningMode  string    `gorm:"type:varchar(50);column:dining_mode"`

	SalesExclTax        float64 `gorm:"column:sales_excl_tax"`
	Tax                 float64
	TaxWithheld         float64 `gorm:"column:tax_withheld"`
	UnfulfilledSales    float64 `gorm:"column:unfulfilled_sales"`
	UnfulfilledRefunds  float64 `gorm:"column:unfulfilled_refunds"`
	Commission          float64
	DeliveryNetworkFee  float64 `gorm:"column:delivery_network_fee"`
	MarketingAdjustment float64 `gorm:"column:marketing_adjustment"`
	AdSpend             float64 `gorm:"column:ad_spend"`
	OfferSpend          float64 `gorm:"column:offer_spend"`
	LoyaltySpend        float64 `gorm:"column:loyalty_spend"`
	CustomerRefunds     float64 `gorm:"column:customer_refunds"`
	DisputesWon         float64 `gorm:"column:disputes_won"`
	Tip                 float64
	OtherPayments       float64 `gorm:"column:other_payments"`
	NetPayout           float64 `gorm:"column:net_payout"`
}

// DoorDash channel and status values that count toward sales-derived metrics.
// Net payout itself is summed across all channels and statuses for cash
// reconciliation, which can legitimately diverge from the sales subtotal.
const (
	DoorDashChannelMarketplace = "Marketplace"

	DoorDashStatusDelivered = "Delivered"
	DoorDashStatusPickedUp  = "Picked Up"
)

// DoorDashTransaction is one DoorDash transaction record
type DoorDashTransaction struct {
	BaseModel
	ClientID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_dd_client_txn,priority:1"`
	LocationID *uuid.UUID `gorm:"type:uuid;index"`
	Location   *Location  `gorm:"foreignKey:LocationID"`

	TransactionID    string    `gorm:"type:varchar(100);not null;column:transaction_id;uniqueIndex:idx_dd_client_txn,priority:2"`
	OrderID          string    `gorm:"type:varchar(100);column:order_id"`
	OrderDate        time.Time `gorm:"index"`
	StoreName        string    `gorm:"type:varchar(200);column:store_name"`
	MerchantStoreID  string    `gorm:"type:varchar(100);column:merchant_store_id"`
	Channel          string    `gorm:"type:varchar(50);index"`
	FinalOrderStatus string    `gorm:"type:varchar(50);column:final_order_status"`

	Subtotal        float64
	Tax             float64
	TaxRemitted     float64 `gorm:"column:tax_remitted"`
	Commission      float64
	MarketingFees   float64 `gorm:"column:marketing_fees"`
	AdSpend         float64 `gorm:"column:ad_spend"`
	PromotionSpend  float64 `gorm:"column:promotion_spend"`
	ErrorCharges    float64 `gorm:"column:error_charges"`
	CustomerRefunds float64 `gorm:"column:customer_refunds"`
	DisputesWon     float64 `gorm:"column:disputes_won"`
	Tip             float64
	OtherPayments   float64 `gorm:"column:other_payments"`
	NetPayout       float64 `gorm:"column:net_payout"`
}

// MarketingSpend returns total marketing-attributable spend for the order
func (t *DoorDashTransaction) MarketingSpend() float64 {
	return t.AdSpend + t.PromotionSpend
}

// CountsTowardSales reports whether this transaction meets DoorDash's
// channel/status criteria for sales-derived metrics
func (t *DoorDashTransaction) CountsTowardSales() bool {
	if t.Channel != DoorDashChannelMarketplace {
		return false
	}
	return t.FinalOrderStatus == DoorDashStatusDelivered || t.FinalOrderStatus == DoorDashStatusPickedUp
}

// GrubhubTransaction is one Grubhub transaction record. The store display name
// is constant across a brand's Grubhub locations, so the street address and
// store number are the discriminators used for location resolution.
type GrubhubTransaction struct {
	BaseModel
	ClientID   uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_gh_client_txn,priority:1"`
	LocationID *uuid.UUID `gorm:"type:uuid;index"`
	Location   *Location  `gorm:"foreignKey:LocationID"`

	TransactionID   string    `gorm:"type:varchar(100);not null;column:transaction_id;uniqueIndex:idx_gh_client_txn,priority:2"`
	OrderNumber     string    `gorm:"type:varchar(100);column:order_number"`
	OrderDate       time.Time `gorm:"index"`
	StoreName       string    `gorm:"type:varchar(200);column:store_name"`
	StoreNumber     string    `gorm:"type:varchar(50);column:store_number"`
	StreetAddress   string    `gorm:"type:varchar(500);column:street_address"`
	TransactionType string    `gorm:"type:varchar(50);column:transaction_type"`

	Subtotal                float64
	Tax                     float64
	TaxWithheld             float64 `gorm:"column:tax_withheld"`
	Commission              float64
	DeliveryFee             float64 `gorm:"column:delivery_fee"`
	ProcessingFee           float64 `gorm:"column:processing_fee"`
	MerchantFundedPromotion float64 `gorm:"column:merchant_funded_promotion"`
	GrubhubFundedPromotion  float64 `gorm:"column:grubhub_funded_promotion"`
	CustomerRefunds         float64 `gorm:"column:customer_refunds"`
	DisputesWon             float64 `gorm:"column:disputes_won"`
	Tip                     float64
	OtherPayments           float64 `gorm:"column:other_payments"`
	NetPayout               float64 `gorm:"column:net_payout"`
}

// WeeklyFinancial is the cached per-location, per-ISO-week rollup. Rows are
// fully derivable from transactions and are regenerated wholesale per client
// (delete-then-rebuild), never incrementally patched.
type WeeklyFinancial struct {
	BaseModel
	ClientID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_wf_client_loc_week,priority:1"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_wf_client_loc_week,priority:2"`
	Location   *Location `gorm:"foreignKey:LocationID"`
	WeekStart  time.Time `gorm:"not null;index;column:week_start;uniqueIndex:idx_wf_client_loc_week,priority:3"`

	Sales           float64
	MarketingSales  float64 `gorm:"column:marketing_sales"`
	MarketingSpend  float64 `gorm:"column:marketing_spend"`
	MarketingPct    float64 `gorm:"column:marketing_pct"`
	ROAS            float64 `gorm:"column:roas"`
	Payout          float64
	PayoutPct       float64 `gorm:"column:payout_pct"`
	PayoutAfterCOGS float64 `gorm:"column:payout_after_cogs"`
}

// WeekStartOf truncates a time to the Monday of its ISO week, in UTC
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, 1-weekday)
}
