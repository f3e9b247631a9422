package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	// TranslateError maps the unique-key violation on the notification ledger
	// to gorm.ErrDuplicatedKey, which AddSentNotification relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(
		&models.TrackedAuction{},
		&models.UserProfile{},
		&models.AlertPreference{},
		&models.AuctionAlertSubscription{},
		&models.SentNotificationRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) AddAuction(auction *models.TrackedAuction) error {
	if auction.ID == "" {
		auction.ID = uuid.NewString()
	}
	if err := db.Conn.Create(auction).Error; err != nil {
		return fmt.Errorf("failed to create auction: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetAuction(id string) (*models.TrackedAuction, error) {
	var auction models.TrackedAuction
	if err := db.Conn.Where("id = ?", id).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %s", err)
	}

	return &auction, nil
}

func (db *PostgresDB) GetAuctionsByUser(userID string) ([]*models.TrackedAuction, error) {
	var auctions []*models.TrackedAuction
	if err := db.Conn.Where("user_id = ?", userID).Order("created_at").Find(&auctions).Error; err != nil {
		return nil, fmt.Errorf("failed to get auctions for user: %s", err)
	}

	return auctions, nil
}

// UpdateAuction persists one refresh result as a single atomic row update.
func (db *PostgresDB) UpdateAuction(auction *models.TrackedAuction) error {
	result := db.Conn.Model(&models.TrackedAuction{}).Where("id = ?", auction.ID).Updates(map[string]interface{}{
		"name":           auction.Name,
		"price_display":  auction.PriceDisplay,
		"price_jpy":      auction.PriceJPY,
		"bid_count":      auction.BidCount,
		"time_remaining": auction.TimeRemaining,
		"end_time":       auction.EndTime,
		"image_url":      auction.ImageURL,
		"last_updated":   auction.LastUpdated,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update auction: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteAuction removes the auction scoped by owner; subscriptions and
// ledger rows go with it via the FK cascades.
func (db *PostgresDB) DeleteAuction(id, userID string) error {
	result := db.Conn.Where("id = ? AND user_id = ?", id, userID).Delete(&models.TrackedAuction{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete auction: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (db *PostgresDB) GetUserProfile(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := db.Conn.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %s", err)
	}

	return &profile, nil
}

func (db *PostgresDB) UpsertUserProfile(profile *models.UserProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	err := db.Conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"preferred_currency", "preferred_language", "refresh_interval_minutes", "email",
		}),
	}).Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetAlertPreference(userID string) (*models.AlertPreference, error) {
	var pref models.AlertPreference
	if err := db.Conn.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert preference: %s", err)
	}

	return &pref, nil
}

func (db *PostgresDB) UpsertAlertPreference(pref *models.AlertPreference) error {
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}
	err := db.Conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"alert_minutes", "enable_browser", "enable_email", "enable_telegram",
			"telegram_bot_token", "telegram_chat_id",
		}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("failed to upsert alert preference: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListUserIDsWithAuctions() ([]string, error) {
	var userIDs []string
	if err := db.Conn.Model(&models.TrackedAuction{}).Distinct("user_id").Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list users with auctions: %s", err)
	}

	return userIDs, nil
}

func (db *PostgresDB) AddSubscription(sub *models.AuctionAlertSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	if err := db.Conn.Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// already subscribed, nothing to do
			return nil
		}
		return fmt.Errorf("failed to create subscription: %s", err)
	}
	return nil
}

func (db *PostgresDB) RemoveSubscription(auctionID, userID string) error {
	if err := db.Conn.Where("auction_id = ? AND user_id = ?", auctionID, userID).
		Delete(&models.AuctionAlertSubscription{}).Error; err != nil {
		return fmt.Errorf("failed to remove subscription: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListActiveSubscriptions() ([]*models.AuctionAlertSubscription, error) {
	var subs []*models.AuctionAlertSubscription
	if err := db.Conn.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %s", err)
	}

	return subs, nil
}

func (db *PostgresDB) HasSentNotification(auctionID, userID string, alertMinutes int) (bool, error) {
	var record models.SentNotificationRecord
	err := db.Conn.Where("auction_id = ? AND user_id = ? AND alert_minutes = ?",
		auctionID, userID, alertMinutes).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check sent notification: %s", err)
	}

	return true, nil
}

// AddSentNotification appends to the ledger. The composite unique index is
// the concurrency discipline here: an insert hitting an existing
// (auction, user, alert_minutes) key returns ErrAlreadySent instead of
// racing a check-then-write.
func (db *PostgresDB) AddSentNotification(record *models.SentNotificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}
	if err := db.Conn.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrAlreadySent
		}
		return fmt.Errorf("failed to record sent notification: %s", err)
	}
	return nil
}
