package zenwatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
	"github.com/zenwatch/zenwatch/pkg/timeleft"
)

// Zenwatch is the main struct for the zenwatch application.
// It owns the refresh pipeline and the alert dispatcher and serves all
// business logic. Every collaborator is injected; there are no package
// level singletons.
type Zenwatch struct {
	logger *logger.Logger

	repo        models.Repository
	scraper     models.ScraperService
	rates       models.RateService
	translator  models.TranslationService
	notificator models.NotificationService
	parser      *timeleft.Parser

	// now is the clock; swapped out in tests.
	now func() time.Time
}

// NewZenwatch creates a new Zenwatch instance.
func NewZenwatch(
	repo models.Repository,
	scraper models.ScraperService,
	rates models.RateService,
	translator models.TranslationService,
	notificator models.NotificationService,
	logger *logger.Logger,
) *Zenwatch {
	return &Zenwatch{
		repo:        repo,
		scraper:     scraper,
		rates:       rates,
		translator:  translator,
		notificator: notificator,
		logger:      logger,
		parser:      timeleft.Default(),
		now:         time.Now,
	}
}

// settingsFor resolves the user's profile against defaults once per
// invocation, instead of scattering fallbacks through the call sites.
func (z *Zenwatch) settingsFor(userID string) models.UserSettings {
	profile, err := z.repo.GetUserProfile(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			z.logger.Error("Failed to load user profile, using defaults ", "user_id ", userID, " error ", err)
		}
		return models.ResolveSettings(nil)
	}
	return models.ResolveSettings(profile)
}

// TrackAuction scrapes the listing once and inserts a new tracked auction.
// This is the synchronous submission path, so failures propagate to the
// caller instead of being swallowed.
func (z *Zenwatch) TrackAuction(ctx context.Context, userID, url string) (*models.TrackedAuction, error) {
	scraped, err := z.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	settings := z.settingsFor(userID)
	now := z.now()

	auction := &models.TrackedAuction{
		UserID:    userID,
		URL:       url,
		CreatedAt: now,
	}
	if err := z.applyScrape(ctx, auction, scraped, settings, now); err != nil {
		return nil, err
	}

	if err := z.repo.AddAuction(auction); err != nil {
		return nil, err
	}
	z.logger.Info("Auction tracked ", "auction_id ", auction.ID, " user_id ", userID)
	return auction, nil
}

// RefreshAuction brings one record up to date. On scrape failure the stored
// record is left untouched and the error is returned; the auction is skipped
// this cycle, not deleted.
func (z *Zenwatch) RefreshAuction(ctx context.Context, auctionID string) (*models.TrackedAuction, error) {
	auction, err := z.repo.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}

	settings := z.settingsFor(auction.UserID)
	if err := z.refreshOne(ctx, auction, settings); err != nil {
		return nil, err
	}
	return auction, nil
}

// refreshOne runs the scrape -> parse -> convert -> translate -> persist
// sequence for one auction. The stages are strictly sequential; each one
// depends on the previous stage's output.
func (z *Zenwatch) refreshOne(ctx context.Context, auction *models.TrackedAuction, settings models.UserSettings) error {
	scraped, err := z.scraper.Scrape(ctx, auction.URL)
	if err != nil {
		z.logger.Error("Scrape failed, keeping stale record ", "auction_id ", auction.ID, " error ", err)
		return err
	}

	if err := z.applyScrape(ctx, auction, scraped, settings, z.now()); err != nil {
		return err
	}

	if err := z.repo.UpdateAuction(auction); err != nil {
		z.logger.Error("Failed to persist refresh ", "auction_id ", auction.ID, " error ", err)
		return err
	}
	return nil
}

// applyScrape normalizes the scraped fields onto the record: end time from
// the countdown text, price in the user's currency, translated name.
// A rate failure is fatal for the item; a translation failure is not, the
// original Japanese title is kept instead.
func (z *Zenwatch) applyScrape(ctx context.Context, auction *models.TrackedAuction, scraped *models.ScrapedAuction, settings models.UserSettings, now time.Time) error {
	priceDisplay, err := z.rates.Convert(ctx, scraped.PriceJPY, settings.Currency)
	if err != nil {
		return fmt.Errorf("convert price for auction %s: %w", auction.ID, err)
	}

	name := scraped.Name
	if settings.Language != models.DefaultLanguage {
		translated, err := z.translator.Translate(ctx, scraped.Name, models.DefaultLanguage, settings.Language)
		if err != nil {
			z.logger.Warn("Translation failed, keeping original name ", "auction_id ", auction.ID, " error ", err)
		} else {
			name = translated
		}
	}

	auction.Name = name
	auction.PriceDisplay = priceDisplay
	auction.PriceJPY = scraped.PriceJPY
	auction.BidCount = scraped.BidCount
	auction.TimeRemaining = scraped.TimeRemaining
	auction.ImageURL = scraped.ImageURL
	auction.LastUpdated = now

	if end, ok := z.parser.Parse(scraped.TimeRemaining, now); ok {
		auction.EndTime = &end
	} else {
		auction.EndTime = nil
	}
	return nil
}

// RefreshAllAuctions refreshes every auction the user tracks. Items are
// isolated: one failure never aborts the siblings, and the batch itself
// reports counts instead of an error.
func (z *Zenwatch) RefreshAllAuctions(ctx context.Context, userID string) models.RefreshReport {
	report := models.RefreshReport{}

	auctions, err := z.repo.GetAuctionsByUser(userID)
	if err != nil {
		z.logger.Error("Failed to load auctions for refresh ", "user_id ", userID, " error ", err)
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	settings := z.settingsFor(userID)
	for _, auction := range auctions {
		if ctx.Err() != nil {
			// deadline hit: remaining auctions are simply not processed this cycle
			z.logger.Warn("Refresh batch cancelled ", "user_id ", userID, " remaining ", len(auctions)-report.Refreshed-report.Failed)
			break
		}
		if err := z.refreshOne(ctx, auction, settings); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("auction %s: %v", auction.ID, err))
			continue
		}
		report.Refreshed++
	}

	z.logger.Info("Refresh batch finished ", "user_id ", userID, " refreshed ", report.Refreshed, " failed ", report.Failed)
	return report
}

// CheckAndSendAlerts runs the dispatcher over all alert subscriptions.
// For each (auction, user, alert_minutes) tuple the transition to sent
// fires at most once, guarded by the ledger's unique key. The ledger row is
// written only after a successful dispatch so a failed send is retried next
// cycle; the known cost is at-least-once delivery when the send succeeds
// and the ledger write then fails.
func (z *Zenwatch) CheckAndSendAlerts(ctx context.Context) models.AlertReport {
	report := models.AlertReport{}

	subs, err := z.repo.ListActiveSubscriptions()
	if err != nil {
		z.logger.Error("Failed to load alert subscriptions ", "error ", err)
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	now := z.now()
	prefs := make(map[string]*models.AlertPreference)
	emails := make(map[string]string)

	for _, sub := range subs {
		report.Processed++

		pref, ok := prefs[sub.UserID]
		if !ok {
			pref = z.loadPreference(sub.UserID)
			prefs[sub.UserID] = pref
			emails[sub.UserID] = z.settingsFor(sub.UserID).Email
		}
		if pref == nil || !pref.HasEnabledChannel() {
			report.Skipped++
			continue
		}

		auction, err := z.repo.GetAuction(sub.AuctionID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				report.Errors = append(report.Errors, fmt.Sprintf("auction %s: %v", sub.AuctionID, err))
			}
			report.Skipped++
			continue
		}
		if auction.EndTime == nil {
			report.Skipped++
			continue
		}

		remaining := auction.EndTime.Sub(now)
		if remaining <= 0 || remaining > time.Duration(pref.AlertMinutes)*time.Minute {
			report.Skipped++
			continue
		}

		sent, err := z.repo.HasSentNotification(auction.ID, sub.UserID, pref.AlertMinutes)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("ledger check %s: %v", auction.ID, err))
			continue
		}
		if sent {
			report.Skipped++
			continue
		}

		msg := &models.AlertMessage{
			Name:             auction.Name,
			MinutesRemaining: int(math.Round(remaining.Minutes())),
			PriceDisplay:     auction.PriceDisplay,
			URL:              auction.URL,
		}

		delivered, channelErrs := z.notificator.Send(ctx, pref, emails[sub.UserID], msg)
		for _, cerr := range channelErrs {
			report.Errors = append(report.Errors, fmt.Sprintf("auction %s: %v", auction.ID, cerr))
		}
		if !delivered {
			// no ledger write: the tuple stays pending and is retried next cycle
			continue
		}

		record := &models.SentNotificationRecord{
			AuctionID:    auction.ID,
			UserID:       sub.UserID,
			AlertMinutes: pref.AlertMinutes,
			SentAt:       now,
		}
		if err := z.repo.AddSentNotification(record); err != nil {
			if errors.Is(err, models.ErrAlreadySent) {
				// an overlapping run recorded it first
				z.logger.Debug("Ledger row already present ", "auction_id ", auction.ID, " user_id ", sub.UserID)
			} else {
				report.Errors = append(report.Errors, fmt.Sprintf("ledger write %s: %v", auction.ID, err))
			}
		}
		report.Sent++
	}

	z.logger.Info("Alert run finished ", "processed ", report.Processed, " sent ", report.Sent, " skipped ", report.Skipped, " errors ", len(report.Errors))
	return report
}

// loadPreference returns the user's alert preference with the telegram
// channel masked off when its credentials are incomplete.
func (z *Zenwatch) loadPreference(userID string) *models.AlertPreference {
	pref, err := z.repo.GetAlertPreference(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			z.logger.Error("Failed to load alert preference ", "user_id ", userID, " error ", err)
		}
		return nil
	}
	if pref.EnableTelegram && (pref.TelegramBotToken == "" || pref.TelegramChatID == "") {
		z.logger.Warn("Telegram enabled without credentials, masking channel ", "user_id ", userID)
		pref.EnableTelegram = false
	}
	return pref
}

// ListAuctions returns the user's tracked auctions.
func (z *Zenwatch) ListAuctions(ctx context.Context, userID string) ([]*models.TrackedAuction, error) {
	return z.repo.GetAuctionsByUser(userID)
}

// DeleteAuction removes a tracked auction; subscriptions and ledger rows
// cascade with it.
func (z *Zenwatch) DeleteAuction(ctx context.Context, auctionID, userID string) error {
	return z.repo.DeleteAuction(auctionID, userID)
}

// Subscribe marks "notify me about this auction" for the user.
func (z *Zenwatch) Subscribe(ctx context.Context, auctionID, userID string) error {
	if _, err := z.repo.GetAuction(auctionID); err != nil {
		return err
	}
	return z.repo.AddSubscription(&models.AuctionAlertSubscription{
		AuctionID: auctionID,
		UserID:    userID,
		CreatedAt: z.now(),
	})
}

// Unsubscribe removes the user's alert subscription for the auction.
func (z *Zenwatch) Unsubscribe(ctx context.Context, auctionID, userID string) error {
	return z.repo.RemoveSubscription(auctionID, userID)
}

func (z *Zenwatch) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return z.repo.GetUserProfile(userID)
}

func (z *Zenwatch) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if profile.RefreshIntervalMinutes < 1 {
		return fmt.Errorf("refresh_interval_minutes must be at least 1")
	}
	return z.repo.UpsertUserProfile(profile)
}

func (z *Zenwatch) GetPreference(ctx context.Context, userID string) (*models.AlertPreference, error) {
	return z.repo.GetAlertPreference(userID)
}

func (z *Zenwatch) SavePreference(ctx context.Context, pref *models.AlertPreference) error {
	if err := pref.Validate(); err != nil {
		return err
	}
	return z.repo.UpsertAlertPreference(pref)
}
