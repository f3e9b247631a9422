package models

import "time"

// TrackedAuction represents one auction a user is watching.
type TrackedAuction struct {
	// ID is the unique identifier for the tracked auction.
	ID string `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	// UserID is the owner of this tracked auction. All reads are scoped by it.
	UserID string `json:"user_id" gorm:"column:user_id;index;not null"`
	// URL is the listing page this record was scraped from.
	URL string `json:"url" gorm:"column:url;not null"`
	// Name is the product name, translated to the owner's preferred language
	// when translation succeeded, otherwise the original Japanese title.
	Name string `json:"name" gorm:"column:name"`
	// PriceDisplay is the current price formatted in the owner's preferred currency.
	PriceDisplay string `json:"price_display" gorm:"column:price_display"`
	// PriceJPY is the numeric baseline in yen. Always >= 0.
	PriceJPY int64 `json:"price_jpy" gorm:"column:price_jpy;check:price_jpy >= 0"`
	// BidCount is the number of bids at the last refresh.
	BidCount int `json:"bid_count" gorm:"column:bid_count"`
	// TimeRemaining is the raw countdown text as scraped from the page.
	TimeRemaining string `json:"time_remaining" gorm:"column:time_remaining"`
	// EndTime is derived from TimeRemaining at the most recent refresh.
	// Nil when the parser did not recognize the text. It is a cache of the
	// listing page, not ground truth.
	EndTime *time.Time `json:"end_time" gorm:"column:end_time"`
	// ImageURL is the listing image, empty when the page has none.
	ImageURL string `json:"image_url" gorm:"column:image_url"`
	// LastUpdated is when the record was last refreshed from the source site.
	LastUpdated time.Time `json:"last_updated" gorm:"column:last_updated"`
	// CreatedAt is when the user submitted the auction.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`

	// Subscriptions are the alert subscriptions pointing at this auction.
	Subscriptions []AuctionAlertSubscription `json:"-" gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
	// SentNotifications is the de-duplication ledger for this auction.
	SentNotifications []SentNotificationRecord `json:"-" gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
}

func (TrackedAuction) TableName() string { return "auctions" }

// ScrapedAuction is the raw field set extracted from one listing page.
// It carries no user context; the refresh pipeline normalizes it into a
// TrackedAuction using the owner's settings.
type ScrapedAuction struct {
	// Name is the product title exactly as the page shows it.
	Name string `json:"name"`
	// PriceJPY is the current price coerced to integer yen.
	PriceJPY int64 `json:"price_jpy"`
	// BidCount is the number of bids shown on the page.
	BidCount int `json:"bid_count"`
	// TimeRemaining is the countdown text, untouched.
	TimeRemaining string `json:"time_remaining"`
	// ImageURL is optional; empty when the listing has no image.
	ImageURL string `json:"image_url"`
}
