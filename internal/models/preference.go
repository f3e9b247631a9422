package models

import (
	"fmt"
	"time"
)

// Currency is an ISO 4217 code the converter can format.
type Currency string

const (
	JPY Currency = "JPY"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// Defaults substituted when a user has no profile or preference row.
const (
	DefaultAlertMinutes    = 5
	DefaultRefreshInterval = 5
	DefaultCurrency        = JPY
	DefaultLanguage        = "ja"
)

// UserProfile holds per-user display settings for the refresh pipeline.
type UserProfile struct {
	// ID is the unique identifier for the profile row.
	ID string `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	// UserID is the owning user. One profile per user.
	UserID string `json:"user_id" gorm:"column:user_id;uniqueIndex;not null"`
	// PreferredCurrency is the currency prices are converted into.
	PreferredCurrency Currency `json:"preferred_currency" gorm:"column:preferred_currency"`
	// PreferredLanguage is the ISO 639-1 code product names are translated into.
	PreferredLanguage string `json:"preferred_language" gorm:"column:preferred_language"`
	// RefreshIntervalMinutes is how often the scheduler refreshes this user's
	// auctions. Minimum 1.
	RefreshIntervalMinutes int `json:"refresh_interval_minutes" gorm:"column:refresh_interval_minutes"`
	// Email is the address alert emails are sent to.
	Email string `json:"email" gorm:"column:email"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// AlertPreference holds per-user alerting settings. One row per user.
type AlertPreference struct {
	// ID is the unique identifier for the preference row.
	ID string `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	// UserID is the owning user.
	UserID string `json:"user_id" gorm:"column:user_id;uniqueIndex;not null"`
	// AlertMinutes is the lead time before auction close, 1-60.
	AlertMinutes int `json:"alert_minutes" gorm:"column:alert_minutes"`
	// EnableBrowser enables in-app notification records.
	EnableBrowser bool `json:"enable_browser" gorm:"column:enable_browser"`
	// EnableEmail enables alert emails to the profile address.
	EnableEmail bool `json:"enable_email" gorm:"column:enable_email"`
	// EnableTelegram enables Telegram alerts. Requires both credential fields.
	EnableTelegram bool `json:"enable_telegram" gorm:"column:enable_telegram"`
	// TelegramBotToken is the user's bot token. Set together with TelegramChatID.
	TelegramBotToken string `json:"telegram_bot_token" gorm:"column:telegram_bot_token"`
	// TelegramChatID is the chat the bot posts to.
	TelegramChatID string `json:"telegram_chat_id" gorm:"column:telegram_chat_id"`
}

func (AlertPreference) TableName() string { return "alert_preferences" }

// Validate enforces the alert preference invariants.
func (p *AlertPreference) Validate() error {
	if p.AlertMinutes < 1 || p.AlertMinutes > 60 {
		return fmt.Errorf("alert_minutes must be between 1 and 60, got %d", p.AlertMinutes)
	}
	if p.EnableTelegram && (p.TelegramBotToken == "" || p.TelegramChatID == "") {
		return fmt.Errorf("telegram alerts require both bot token and chat id")
	}
	return nil
}

// HasEnabledChannel reports whether at least one delivery channel is on.
func (p *AlertPreference) HasEnabledChannel() bool {
	return p.EnableBrowser || p.EnableEmail || p.EnableTelegram
}

// AuctionAlertSubscription marks "notify me about this auction" for one user.
// Removed by cascade when the auction is deleted.
type AuctionAlertSubscription struct {
	// ID is the unique identifier for the subscription.
	ID string `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	// AuctionID is the tracked auction being watched.
	AuctionID string `json:"auction_id" gorm:"column:auction_id;uniqueIndex:ux_auction_user,priority:1;not null"`
	// UserID is the subscriber.
	UserID string `json:"user_id" gorm:"column:user_id;uniqueIndex:ux_auction_user,priority:2;index;not null"`
	// CreatedAt is when the subscription was made.
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (AuctionAlertSubscription) TableName() string { return "auction_alerts" }

// UserSettings is the profile resolved against defaults. The pipeline resolves
// it once per invocation instead of scattering fallback literals per call site.
type UserSettings struct {
	Currency        Currency
	Language        string
	RefreshInterval time.Duration
	Email           string
}

// ResolveSettings fills in defaults for a missing or partial profile row.
func ResolveSettings(profile *UserProfile) UserSettings {
	settings := UserSettings{
		Currency:        DefaultCurrency,
		Language:        DefaultLanguage,
		RefreshInterval: DefaultRefreshInterval * time.Minute,
	}
	if profile == nil {
		return settings
	}
	if profile.PreferredCurrency != "" {
		settings.Currency = profile.PreferredCurrency
	}
	if profile.PreferredLanguage != "" {
		settings.Language = profile.PreferredLanguage
	}
	if profile.RefreshIntervalMinutes >= 1 {
		settings.RefreshInterval = time.Duration(profile.RefreshIntervalMinutes) * time.Minute
	}
	settings.Email = profile.Email
	return settings
}
