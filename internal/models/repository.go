package models

// Repository is the persistence surface consumed by the core. Implemented by
// the postgres repository; tests substitute an in-memory fake.
type Repository interface {
	// Auctions
	AddAuction(auction *TrackedAuction) error
	GetAuction(id string) (*TrackedAuction, error)
	GetAuctionsByUser(userID string) ([]*TrackedAuction, error)
	UpdateAuction(auction *TrackedAuction) error
	DeleteAuction(id, userID string) error

	// Profiles and preferences
	GetUserProfile(userID string) (*UserProfile, error)
	UpsertUserProfile(profile *UserProfile) error
	GetAlertPreference(userID string) (*AlertPreference, error)
	UpsertAlertPreference(pref *AlertPreference) error
	ListUserIDsWithAuctions() ([]string, error)

	// Alert subscriptions
	AddSubscription(sub *AuctionAlertSubscription) error
	RemoveSubscription(auctionID, userID string) error
	ListActiveSubscriptions() ([]*AuctionAlertSubscription, error)

	// Notification ledger. AddSentNotification must be a unique-constraint
	// guarded insert: it returns ErrAlreadySent when the key exists so two
	// overlapping dispatcher runs cannot both record the same alert.
	HasSentNotification(auctionID, userID string, alertMinutes int) (bool, error)
	AddSentNotification(record *SentNotificationRecord) error

	Close() error
}
