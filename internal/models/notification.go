package models

import (
	"context"
	"fmt"
	"html"
	"time"
)

// SentNotificationRecord is the append-only ledger of dispatched alerts.
// At most one row exists per (auction, user, alert_minutes); the unique
// index is the at-most-once guard against overlapping dispatcher runs.
// Rows are never updated; they go away only when the auction is deleted.
type SentNotificationRecord struct {
	// ID is the unique identifier for the ledger row.
	ID string `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	// AuctionID is the auction the alert was about.
	AuctionID string `json:"auction_id" gorm:"column:auction_id;uniqueIndex:ux_sent_key,priority:1;not null"`
	// UserID is the user the alert was delivered to.
	UserID string `json:"user_id" gorm:"column:user_id;uniqueIndex:ux_sent_key,priority:2;not null"`
	// AlertMinutes is the exact threshold the alert fired for.
	AlertMinutes int `json:"alert_minutes" gorm:"column:alert_minutes;uniqueIndex:ux_sent_key,priority:3;not null"`
	// SentAt is when the dispatch succeeded.
	SentAt time.Time `json:"sent_at" gorm:"column:sent_at"`
}

func (SentNotificationRecord) TableName() string { return "sent_notifications" }

// AlertMessage is the composed content delivered over every enabled channel.
type AlertMessage struct {
	// Name is the product name as stored on the auction.
	Name string `json:"name"`
	// MinutesRemaining is the rounded time to auction close.
	MinutesRemaining int `json:"minutes_remaining"`
	// PriceDisplay is the current price in the user's currency.
	PriceDisplay string `json:"price_display"`
	// URL is the listing page.
	URL string `json:"url"`
}

// Text renders the plain message body.
func (m *AlertMessage) Text() string {
	return fmt.Sprintf("%s ends in %d min, current price %s\n%s",
		m.Name, m.MinutesRemaining, m.PriceDisplay, m.URL)
}

// HTML renders the body for channels that accept HTML. Scraped fields are
// untrusted: a title like "セイコー&シチズン" must not leak raw markup into
// the body, Telegram rejects the whole message otherwise.
func (m *AlertMessage) HTML() string {
	return fmt.Sprintf("<b>%s</b> ends in <b>%d min</b>\nCurrent price: %s\n<a href=\"%s\">Open auction</a>",
		html.EscapeString(m.Name), m.MinutesRemaining, html.EscapeString(m.PriceDisplay), html.EscapeString(m.URL))
}

// NotificationService delivers an alert over every channel the preference
// enables. Channel failures are independent: one failing channel never blocks
// another. Delivered reports whether at least one channel succeeded.
// The context bounds the outbound sends; a hung channel endpoint must not
// stall the dispatcher past its deadline.
type NotificationService interface {
	Send(ctx context.Context, pref *AlertPreference, email string, msg *AlertMessage) (delivered bool, channelErrs []error)
}
