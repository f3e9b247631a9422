package zenwatch

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeRepo struct {
	auctions map[string]models.TrackedAuction
	profiles map[string]models.UserProfile
	prefs    map[string]models.AlertPreference
	subs     []models.AuctionAlertSubscription
	sent     map[string]bool

	updateErr  error
	ledgerErr  error
	sentWrites int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		auctions: make(map[string]models.TrackedAuction),
		profiles: make(map[string]models.UserProfile),
		prefs:    make(map[string]models.AlertPreference),
		sent:     make(map[string]bool),
	}
}

func ledgerKey(auctionID, userID string, minutes int) string {
	return fmt.Sprintf("%s|%s|%d", auctionID, userID, minutes)
}

func (r *fakeRepo) AddAuction(a *models.TrackedAuction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.auctions[a.ID] = *a
	return nil
}

func (r *fakeRepo) GetAuction(id string) (*models.TrackedAuction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := a
	return &copied, nil
}

func (r *fakeRepo) GetAuctionsByUser(userID string) ([]*models.TrackedAuction, error) {
	var out []*models.TrackedAuction
	for id := range r.auctions {
		if r.auctions[id].UserID == userID {
			copied := r.auctions[id]
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateAuction(a *models.TrackedAuction) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.auctions[a.ID]; !ok {
		return models.ErrNotFound
	}
	r.auctions[a.ID] = *a
	return nil
}

func (r *fakeRepo) DeleteAuction(id, userID string) error {
	a, ok := r.auctions[id]
	if !ok || a.UserID != userID {
		return models.ErrNotFound
	}
	delete(r.auctions, id)
	return nil
}

func (r *fakeRepo) GetUserProfile(userID string) (*models.UserProfile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (r *fakeRepo) UpsertUserProfile(p *models.UserProfile) error {
	r.profiles[p.UserID] = *p
	return nil
}

func (r *fakeRepo) GetAlertPreference(userID string) (*models.AlertPreference, error) {
	p, ok := r.prefs[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (r *fakeRepo) UpsertAlertPreference(p *models.AlertPreference) error {
	r.prefs[p.UserID] = *p
	return nil
}

func (r *fakeRepo) ListUserIDsWithAuctions() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, a := range r.auctions {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

func (r *fakeRepo) AddSubscription(s *models.AuctionAlertSubscription) error {
	r.subs = append(r.subs, *s)
	return nil
}

func (r *fakeRepo) RemoveSubscription(auctionID, userID string) error {
	for i, s := range r.subs {
		if s.AuctionID == auctionID && s.UserID == userID {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRepo) ListActiveSubscriptions() ([]*models.AuctionAlertSubscription, error) {
	out := make([]*models.AuctionAlertSubscription, len(r.subs))
	for i := range r.subs {
		copied := r.subs[i]
		out[i] = &copied
	}
	return out, nil
}

func (r *fakeRepo) HasSentNotification(auctionID, userID string, minutes int) (bool, error) {
	return r.sent[ledgerKey(auctionID, userID, minutes)], nil
}

func (r *fakeRepo) AddSentNotification(rec *models.SentNotificationRecord) error {
	if r.ledgerErr != nil {
		return r.ledgerErr
	}
	key := ledgerKey(rec.AuctionID, rec.UserID, rec.AlertMinutes)
	if r.sent[key] {
		return models.ErrAlreadySent
	}
	r.sent[key] = true
	r.sentWrites++
	return nil
}

func (r *fakeRepo) Close() error { return nil }

type fakeScraper struct {
	pages map[string]*models.ScrapedAuction
	fails map[string]bool
	calls int
}

func (s *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapedAuction, error) {
	s.calls++
	if s.fails[url] {
		return nil, &models.ScrapeError{URL: url, Stage: "fetch", Err: fmt.Errorf("connection refused")}
	}
	page, ok := s.pages[url]
	if !ok {
		return nil, &models.ScrapeError{URL: url, Stage: "parse", Err: fmt.Errorf("title node missing")}
	}
	copied := *page
	return &copied, nil
}

type fakeRates struct {
	fail bool
}

func (f *fakeRates) Convert(ctx context.Context, amountJPY int64, target models.Currency) (string, error) {
	if f.fail {
		return "", models.ErrRateUnavailable
	}
	if target == models.JPY {
		return fmt.Sprintf("¥%d", amountJPY), nil
	}
	return fmt.Sprintf("%s %d.00", target, amountJPY/100), nil
}

type fakeTranslator struct {
	fail  bool
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if target == source {
		return text, nil
	}
	f.calls++
	if f.fail {
		return "", &models.TranslationError{Target: target, Err: fmt.Errorf("service down")}
	}
	return target + ":" + text, nil
}

type fakeNotifier struct {
	deliver     bool
	channelErrs []error
	sent        []*models.AlertMessage
	lastCtx     context.Context
}

func (f *fakeNotifier) Send(ctx context.Context, pref *models.AlertPreference, email string, msg *models.AlertMessage) (bool, []error) {
	f.lastCtx = ctx
	f.sent = append(f.sent, msg)
	return f.deliver, f.channelErrs
}

func newTestApp(repo *fakeRepo, scr *fakeScraper, rates *fakeRates, tr *fakeTranslator, notif models.NotificationService) *Zenwatch {
	z := NewZenwatch(repo, scr, rates, tr, notif, logger.NewNop())
	z.now = func() time.Time { return fixedNow }
	return z
}

func seedAuction(repo *fakeRepo, id, userID, url string) {
	repo.auctions[id] = models.TrackedAuction{ID: id, UserID: userID, URL: url, Name: "old"}
}

// ---- refresh pipeline ----

func TestRefreshAuctionUpdatesRecord(t *testing.T) {
	repo := newFakeRepo()
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {
			Name: "腕時計", PriceJPY: 15500, BidCount: 12,
			TimeRemaining: "1 day 2 hours", ImageURL: "https://img/1.jpg",
		},
	}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	got, err := z.RefreshAuction(context.Background(), "a1")
	if err != nil {
		t.Fatalf("RefreshAuction: %v", err)
	}

	stored := repo.auctions["a1"]
	if stored.PriceJPY != 15500 || stored.PriceDisplay != "¥15500" {
		t.Errorf("price = %d / %q", stored.PriceJPY, stored.PriceDisplay)
	}
	if stored.BidCount != 12 {
		t.Errorf("BidCount = %d", stored.BidCount)
	}
	wantEnd := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
	if stored.EndTime == nil || !stored.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime = %v, want %v", stored.EndTime, wantEnd)
	}
	if !stored.LastUpdated.Equal(fixedNow) {
		t.Errorf("LastUpdated = %v", stored.LastUpdated)
	}
	if got.Name != "腕時計" {
		t.Errorf("Name = %q; default language needs no translation", got.Name)
	}
}

func TestRefreshAuctionScrapeFailureKeepsStale(t *testing.T) {
	repo := newFakeRepo()
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{fails: map[string]bool{"https://zenmarket.jp/auction/1": true}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	_, err := z.RefreshAuction(context.Background(), "a1")
	if err == nil {
		t.Fatal("expected an error from a failing scrape")
	}
	stored := repo.auctions["a1"]
	if stored.Name != "old" || !stored.LastUpdated.IsZero() {
		t.Errorf("stale record was modified: %+v", stored)
	}
}

func TestRefreshAuctionUnparsableCountdownClearsEndTime(t *testing.T) {
	repo := newFakeRepo()
	end := fixedNow.Add(time.Hour)
	repo.auctions["a1"] = models.TrackedAuction{
		ID: "a1", UserID: "u1", URL: "https://zenmarket.jp/auction/1", EndTime: &end,
	}
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {Name: "item", PriceJPY: 100, TimeRemaining: "ending soon"},
	}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	if _, err := z.RefreshAuction(context.Background(), "a1"); err != nil {
		t.Fatalf("RefreshAuction: %v", err)
	}
	if repo.auctions["a1"].EndTime != nil {
		t.Error("EndTime should be nil when the countdown text is unrecognized")
	}
}

func TestRefreshAuctionIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {Name: "item", PriceJPY: 100, TimeRemaining: "2 hours"},
	}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	if _, err := z.RefreshAuction(context.Background(), "a1"); err != nil {
		t.Fatal(err)
	}
	first := repo.auctions["a1"]
	if _, err := z.RefreshAuction(context.Background(), "a1"); err != nil {
		t.Fatal(err)
	}
	second := repo.auctions["a1"]

	if !reflect.DeepEqual(first, second) {
		t.Errorf("records differ between identical refreshes:\n%+v\n%+v", first, second)
	}
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	repo := newFakeRepo()
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	seedAuction(repo, "a2", "u1", "https://zenmarket.jp/auction/2")
	seedAuction(repo, "a3", "u1", "https://zenmarket.jp/auction/3")
	scr := &fakeScraper{
		pages: map[string]*models.ScrapedAuction{
			"https://zenmarket.jp/auction/1": {Name: "one", PriceJPY: 100, TimeRemaining: "1 hour"},
			"https://zenmarket.jp/auction/3": {Name: "three", PriceJPY: 300, TimeRemaining: "3 hours"},
		},
		fails: map[string]bool{"https://zenmarket.jp/auction/2": true},
	}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	report := z.RefreshAllAuctions(context.Background(), "u1")
	if report.Refreshed != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 refreshed 1 failed", report)
	}
	if repo.auctions["a2"].Name != "old" {
		t.Error("failed auction was modified")
	}
	if repo.auctions["a1"].Name != "one" || repo.auctions["a3"].Name != "three" {
		t.Error("sibling auctions were not updated")
	}
}

func TestRefreshTranslatesForNonJapaneseUser(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["u1"] = models.UserProfile{UserID: "u1", PreferredLanguage: "en", RefreshIntervalMinutes: 5}
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {Name: "腕時計", PriceJPY: 100, TimeRemaining: "1 hour"},
	}}
	tr := &fakeTranslator{}

	z := newTestApp(repo, scr, &fakeRates{}, tr, &fakeNotifier{deliver: true})

	if _, err := z.RefreshAuction(context.Background(), "a1"); err != nil {
		t.Fatal(err)
	}
	if got := repo.auctions["a1"].Name; got != "en:腕時計" {
		t.Errorf("Name = %q, want translated", got)
	}
	if tr.calls != 1 {
		t.Errorf("translator calls = %d, want 1", tr.calls)
	}
}

func TestRefreshTranslationFailureKeepsOriginalName(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["u1"] = models.UserProfile{UserID: "u1", PreferredLanguage: "en", RefreshIntervalMinutes: 5}
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {Name: "腕時計", PriceJPY: 100, TimeRemaining: "1 hour"},
	}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{fail: true}, &fakeNotifier{deliver: true})

	if _, err := z.RefreshAuction(context.Background(), "a1"); err != nil {
		t.Fatalf("translation failure must not fail the refresh: %v", err)
	}
	if got := repo.auctions["a1"].Name; got != "腕時計" {
		t.Errorf("Name = %q, want the untranslated original", got)
	}
}

func TestRefreshRateFailureIsItemLevel(t *testing.T) {
	repo := newFakeRepo()
	seedAuction(repo, "a1", "u1", "https://zenmarket.jp/auction/1")
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/1": {Name: "item", PriceJPY: 100, TimeRemaining: "1 hour"},
	}}

	z := newTestApp(repo, scr, &fakeRates{fail: true}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	if _, err := z.RefreshAuction(context.Background(), "a1"); err == nil {
		t.Fatal("expected a rate failure to fail the item")
	}
	if repo.auctions["a1"].Name != "old" {
		t.Error("record was modified despite the rate failure")
	}
}

func TestTrackAuctionInsertsRecord(t *testing.T) {
	repo := newFakeRepo()
	scr := &fakeScraper{pages: map[string]*models.ScrapedAuction{
		"https://zenmarket.jp/auction/9": {Name: "new item", PriceJPY: 800, TimeRemaining: "2 days"},
	}}

	z := newTestApp(repo, scr, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	auction, err := z.TrackAuction(context.Background(), "u1", "https://zenmarket.jp/auction/9")
	if err != nil {
		t.Fatalf("TrackAuction: %v", err)
	}
	if auction.ID == "" {
		t.Error("inserted auction has no id")
	}
	stored, ok := repo.auctions[auction.ID]
	if !ok {
		t.Fatal("auction not persisted")
	}
	if stored.Name != "new item" || !stored.CreatedAt.Equal(fixedNow) {
		t.Errorf("stored = %+v", stored)
	}
}

// ---- alert dispatcher ----

func seedAlertScenario(repo *fakeRepo, minutesToEnd int, alertMinutes int) {
	end := fixedNow.Add(time.Duration(minutesToEnd) * time.Minute)
	repo.auctions["a1"] = models.TrackedAuction{
		ID: "a1", UserID: "u1", URL: "https://zenmarket.jp/auction/1",
		Name: "item", PriceDisplay: "¥1000", EndTime: &end,
	}
	repo.subs = append(repo.subs, models.AuctionAlertSubscription{ID: "s1", AuctionID: "a1", UserID: "u1"})
	repo.prefs["u1"] = models.AlertPreference{
		UserID: "u1", AlertMinutes: alertMinutes, EnableBrowser: true,
	}
}

func TestAlertEligibilityBoundary(t *testing.T) {
	cases := []struct {
		name         string
		minutesToEnd int
		wantSent     int
	}{
		{"exactly at threshold", 5, 1},
		{"inside window", 3, 1},
		{"already ended", 0, 0},
		{"one past threshold", 6, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			seedAlertScenario(repo, tc.minutesToEnd, 5)
			notif := &fakeNotifier{deliver: true}

			z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

			report := z.CheckAndSendAlerts(context.Background())
			if report.Sent != tc.wantSent {
				t.Errorf("Sent = %d, want %d", report.Sent, tc.wantSent)
			}
			if len(notif.sent) != tc.wantSent {
				t.Errorf("dispatched %d messages, want %d", len(notif.sent), tc.wantSent)
			}
		})
	}
}

func TestAlertDeduplication(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	repo.sent[ledgerKey("a1", "u1", 5)] = true
	notif := &fakeNotifier{deliver: true}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 0 || len(notif.sent) != 0 {
		t.Errorf("duplicate alert dispatched: report=%+v sends=%d", report, len(notif.sent))
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
}

func TestAlertFailedDispatchLeavesLedgerUntouched(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	repo.prefs["u1"] = models.AlertPreference{
		UserID: "u1", AlertMinutes: 5, EnableTelegram: true,
		TelegramBotToken: "tok", TelegramChatID: "chat",
	}
	notif := &fakeNotifier{deliver: false, channelErrs: []error{
		&models.NotificationChannelError{Channel: "telegram", Err: fmt.Errorf("timeout")},
	}}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 0 {
		t.Errorf("Sent = %d, want 0", report.Sent)
	}
	if repo.sentWrites != 0 {
		t.Error("ledger written despite failed dispatch; alert would be silently dropped")
	}
	if len(report.Errors) == 0 {
		t.Error("channel failure not reported")
	}

	// next cycle retries the same tuple
	notif.deliver = true
	notif.channelErrs = nil
	report = z.CheckAndSendAlerts(context.Background())
	if report.Sent != 1 || repo.sentWrites != 1 {
		t.Errorf("retry cycle: report=%+v writes=%d", report, repo.sentWrites)
	}
}

func TestAlertPartialChannelFailureStillRecords(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	notif := &fakeNotifier{deliver: true, channelErrs: []error{
		&models.NotificationChannelError{Channel: "email", Err: fmt.Errorf("smtp refused")},
	}}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 1 {
		t.Errorf("Sent = %d, want 1", report.Sent)
	}
	if repo.sentWrites != 1 {
		t.Error("ledger not written after a partially successful dispatch")
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "email") {
		t.Errorf("Errors = %v, want the email channel failure", report.Errors)
	}
}

func TestAlertSkipsAuctionWithoutEndTime(t *testing.T) {
	repo := newFakeRepo()
	repo.auctions["a1"] = models.TrackedAuction{ID: "a1", UserID: "u1", Name: "item"}
	repo.subs = append(repo.subs, models.AuctionAlertSubscription{ID: "s1", AuctionID: "a1", UserID: "u1"})
	repo.prefs["u1"] = models.AlertPreference{UserID: "u1", AlertMinutes: 5, EnableBrowser: true}
	notif := &fakeNotifier{deliver: true}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 0 || report.Skipped != 1 {
		t.Errorf("report = %+v, want skip for missing end time", report)
	}
}

func TestAlertMasksTelegramWithoutCredentials(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	repo.prefs["u1"] = models.AlertPreference{
		UserID: "u1", AlertMinutes: 5, EnableTelegram: true, // no credentials
	}
	notif := &fakeNotifier{deliver: true}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 0 || len(notif.sent) != 0 {
		t.Errorf("alert dispatched through a channel without credentials: %+v", report)
	}
}

func TestAlertSkipsUserWithoutPreference(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	delete(repo.prefs, "u1")
	notif := &fakeNotifier{deliver: true}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	report := z.CheckAndSendAlerts(context.Background())
	if report.Sent != 0 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestAlertDispatchPropagatesContext(t *testing.T) {
	repo := newFakeRepo()
	seedAlertScenario(repo, 4, 5)
	notif := &fakeNotifier{deliver: true}

	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, notif)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "tick")
	z.CheckAndSendAlerts(ctx)

	if notif.lastCtx == nil {
		t.Fatal("no context reached the notification service")
	}
	if v, _ := notif.lastCtx.Value(ctxKey{}).(string); v != "tick" {
		t.Error("dispatcher context was not the one passed to the send; a hung channel could outlive the run deadline")
	}
}

func TestSubscribeUnknownAuction(t *testing.T) {
	repo := newFakeRepo()
	z := newTestApp(repo, &fakeScraper{}, &fakeRates{}, &fakeTranslator{}, &fakeNotifier{deliver: true})

	if err := z.Subscribe(context.Background(), "missing", "u1"); err != models.ErrNotFound {
		t.Errorf("Subscribe to unknown auction: %v, want ErrNotFound", err)
	}
}
