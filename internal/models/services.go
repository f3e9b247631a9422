package models

import "context"

// ScraperService fetches one auction page and extracts the tracked fields.
type ScraperService interface {
	Scrape(ctx context.Context, url string) (*ScrapedAuction, error)
}

// RateService converts a yen amount into a display string for the target
// currency. JPY formats with zero decimals, everything else with two.
type RateService interface {
	Convert(ctx context.Context, amountJPY int64, target Currency) (string, error)
}

// TranslationService translates a product name. Same-language calls return
// the input without touching the network.
type TranslationService interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// RefreshReport summarizes one bulk refresh. Items fail independently;
// the batch itself never does.
type RefreshReport struct {
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// AlertReport summarizes one dispatcher run.
type AlertReport struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// ZenwatchI is the surface the API server and scheduler invoke on the core.
type ZenwatchI interface {
	// TrackAuction scrapes the URL once and inserts a new tracked auction.
	TrackAuction(ctx context.Context, userID, url string) (*TrackedAuction, error)

	// RefreshAuction brings one record up to date from the source site.
	RefreshAuction(ctx context.Context, auctionID string) (*TrackedAuction, error)

	// RefreshAllAuctions refreshes every auction the user tracks,
	// best-effort with per-item isolation.
	RefreshAllAuctions(ctx context.Context, userID string) RefreshReport

	// CheckAndSendAlerts runs the alert dispatcher over all subscriptions.
	CheckAndSendAlerts(ctx context.Context) AlertReport

	// ListAuctions returns the user's tracked auctions.
	ListAuctions(ctx context.Context, userID string) ([]*TrackedAuction, error)

	// DeleteAuction removes a tracked auction and cascades its
	// subscriptions and ledger rows.
	DeleteAuction(ctx context.Context, auctionID, userID string) error

	// Subscribe and Unsubscribe manage per-auction alert subscriptions.
	Subscribe(ctx context.Context, auctionID, userID string) error
	Unsubscribe(ctx context.Context, auctionID, userID string) error

	// Profile and preference access for the API layer.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	SaveProfile(ctx context.Context, profile *UserProfile) error
	GetPreference(ctx context.Context, userID string) (*AlertPreference, error)
	SavePreference(ctx context.Context, pref *AlertPreference) error
}

// APIServer is the HTTP front implemented by http_api.
type APIServer interface {
	Start()
	Shutdown() error
}
